package domain

import (
	"net/http"
	"testing"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []EndpointResult
		wantOK  bool
		status  int
	}{
		{
			name: "all accepted",
			results: []EndpointResult{
				{Endpoint: "e1", OK: true, StatusCode: 200},
				{Endpoint: "e2", OK: true, StatusCode: 202},
			},
			wantOK: true,
			status: http.StatusOK,
		},
		{
			name: "all failed",
			results: []EndpointResult{
				{Endpoint: "e1", OK: false, StatusCode: 500},
				{Endpoint: "e2", OK: false, StatusCode: 0, Body: "network error"},
			},
			wantOK: false,
			status: http.StatusMultiStatus,
		},
		{
			name: "one accepted among failures",
			results: []EndpointResult{
				{Endpoint: "e1", OK: false, StatusCode: 404},
				{Endpoint: "e2", OK: true, StatusCode: 202},
			},
			wantOK: true,
			status: http.StatusOK,
		},
		{
			name: "success codes other than 200/202 are not acceptance",
			results: []EndpointResult{
				{Endpoint: "e1", OK: true, StatusCode: 304},
				{Endpoint: "e2", OK: true, StatusCode: 204},
			},
			wantOK: false,
			status: http.StatusMultiStatus,
		},
		{
			name:    "no results",
			results: nil,
			wantOK:  false,
			status:  http.StatusMultiStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Aggregate(7, tt.results)
			if out.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v", out.OK, tt.wantOK)
			}
			if out.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", out.StatusCode(), tt.status)
			}
			if out.Submitted != 7 {
				t.Errorf("Submitted = %d, want 7", out.Submitted)
			}
			if len(out.Results) != len(tt.results) {
				t.Errorf("len(Results) = %d, want %d", len(out.Results), len(tt.results))
			}
		})
	}
}

func TestAggregateDoesNotAliasInput(t *testing.T) {
	in := []EndpointResult{{Endpoint: "e1", OK: true, StatusCode: 200}}
	out := Aggregate(1, in)
	in[0].Endpoint = "changed"

	if out.Results[0].Endpoint != "e1" {
		t.Error("Aggregate() result shares backing array with input")
	}
}
