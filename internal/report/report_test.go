package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReport_Validate(t *testing.T) {
	const reportID = "5f0c6c3e-8f5e-4f55-9a52-0d7f3c1e2b4a"

	tests := []struct {
		name    string
		r       Report
		wantErr bool
	}{
		{"valid", Report{ReporterID: "a", ReportedID: "b"}, false},
		{"missing reporter", Report{ReportedID: "b"}, true},
		{"missing reported", Report{ReporterID: "a"}, true},
		{"self report", Report{ReporterID: "a", ReportedID: "a"}, true},
		{"id not a uuid", Report{ID: "r1", ReporterID: "a", ReportedID: "b"}, true},
		{"uploaded screenshot", Report{ID: reportID, ScreenshotKey: ScreenshotKey(reportID), ReporterID: "a", ReportedID: "b"}, false},
		{"screenshot key of another report", Report{ID: reportID, ScreenshotKey: "reports/other.png", ReporterID: "a", ReportedID: "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
