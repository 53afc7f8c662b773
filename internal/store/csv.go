package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ivlev/satwatch/internal/signal"
)

var csvHeader = []string{
	"frame", "timestamp", "status", "alert",
	"cx", "cy", "a", "b", "angle",
	"h_raw", "h_decay", "h_smooth", "h_d1", "h_d2",
	"s_raw", "s_decay", "s_smooth", "s_d1", "s_d2",
	"v_raw", "v_decay", "v_smooth", "v_d1", "v_d2",
}

// WriteCSV streams the given frame-index range as CSV. A toFrame of
// -1 exports to the end of the log.
func (s *Store) WriteCSV(w io.Writer, fromFrame, toFrame int) error {
	records := s.Range(fromFrame, toFrame)

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Frame),
			r.Timestamp.Format(time.RFC3339Nano),
			r.Status.String(),
			strconv.FormatBool(r.Alert),
			fmtF(r.Shape.Cx), fmtF(r.Shape.Cy),
			fmtF(r.Shape.A), fmtF(r.Shape.B), fmtF(r.Shape.Angle),
		}
		row = append(row, channelColumns(r.Sample.Hue)...)
		row = append(row, channelColumns(r.Sample.Saturation)...)
		row = append(row, channelColumns(r.Sample.Value)...)

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func channelColumns(s signal.Sample) []string {
	return []string{
		fmtF(s.Raw), fmtF(s.Decay), fmtF(s.Smooth), fmtF(s.Deriv1), fmtF(s.Deriv2),
	}
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
