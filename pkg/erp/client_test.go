package erp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/containerflow/pkg/config"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
)

func testConfig() config.ERPConfig {
	return config.ERPConfig{
		BaseURL:                  "http://erp.test/api/datasources/",
		Username:                 "svc",
		Password:                 "pw",
		ContainerBySerialSource:  4619,
		ProductionLocationSource: 18120,
		ContainersByPartSource:   8566,
		ProductionLocationType:   "Production Storage_IN",
		RequestTimeout:           time.Second,
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestCurrentLocationRequest(t *testing.T) {
	var capturedURL string
	var capturedInputs map[string]any
	var user, pass string

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		user, pass, _ = req.BasicAuth()
		var payload struct {
			Inputs map[string]any `json:"inputs"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedInputs = payload.Inputs
		return jsonResponse(http.StatusOK, `{"tables":[{"columns":["Serial_No","Location"],"rows":[["S-1"," PROD-01 "]]}]}`), nil
	})

	loc, found, err := client.CurrentLocation(context.Background(), "S-1")
	if err != nil {
		t.Fatalf("current location: %v", err)
	}
	if !found || loc != "PROD-01" {
		t.Fatalf("expected PROD-01 found, got %q %v", loc, found)
	}
	if capturedURL != "http://erp.test/api/datasources/4619/execute" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedInputs["Serial_No"] != "S-1" {
		t.Fatalf("unexpected inputs %v", capturedInputs)
	}
	if user != "svc" || pass != "pw" {
		t.Fatalf("basic auth missing, got %q/%q", user, pass)
	}
}

func TestCurrentLocationNotFound(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"tables":[{"columns":["Serial_No","Location"],"rows":[]}]}`), nil
	})

	loc, found, err := client.CurrentLocation(context.Background(), "S-404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || loc != "" {
		t.Fatalf("expected not found, got %q %v", loc, found)
	}
}

func TestCurrentLocationFailures(t *testing.T) {
	cases := map[string]roundTripFunc{
		"status": func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, "upstream down"), nil
		},
		"transport": func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
		"decode": func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `<html>`), nil
		},
		"no tables": func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"tables":[]}`), nil
		},
	}
	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, rt)
			_, _, err := client.CurrentLocation(context.Background(), "S-1")
			if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				t.Fatalf("expected dependency error, got %v", err)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestCurrentLocationTimeouts(t *testing.T) {
	cases := map[string]roundTripFunc{
		"transport timeout": func(req *http.Request) (*http.Response, error) {
			return nil, timeoutError{}
		},
		"context deadline": func(req *http.Request) (*http.Response, error) {
			return nil, context.DeadlineExceeded
		},
	}
	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, rt)
			_, _, err := client.CurrentLocation(context.Background(), "S-1")
			if !pkgerrors.IsCode(err, pkgerrors.CodeTimeout) {
				t.Fatalf("expected timeout error, got %v", err)
			}
		})
	}
}

func TestCurrentLocationRequiresSerial(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	if _, _, err := client.CurrentLocation(context.Background(), "  "); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProductionLocations(t *testing.T) {
	var capturedURL string
	var capturedInputs map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		var payload struct {
			Inputs map[string]any `json:"inputs"`
		}
		_ = json.NewDecoder(req.Body).Decode(&payload)
		capturedInputs = payload.Inputs
		return jsonResponse(http.StatusOK, `{"tables":[{"columns":["Location","Location_Type"],"rows":[["PROD-01","Production Storage_IN"],["PROD-02","Production Storage_IN"],[null,"Production Storage_IN"]]}]}`), nil
	})

	locations, err := client.ProductionLocations(context.Background())
	if err != nil {
		t.Fatalf("production locations: %v", err)
	}
	if len(locations) != 2 || locations[0] != "PROD-01" || locations[1] != "PROD-02" {
		t.Fatalf("unexpected locations %v", locations)
	}
	if capturedURL != "http://erp.test/api/datasources/18120/execute" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedInputs["Location_Type"] != "Production Storage_IN" {
		t.Fatalf("unexpected inputs %v", capturedInputs)
	}
}

func TestContainersByPartFiltersAndSorts(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body := `{"tables":[{"columns":["Serial_No","Part_No","Revision","Quantity","Location","Add_Date"],"rows":[
			["S-3","P-1","A",12.5,"WH-02","2024-01-03"],
			["S-2","P-1","A",10,"J-B-11","2024-01-01"],
			["S-1","P-1","A","8.25","WH-01","2024-01-02"]
		]}]}`
		return jsonResponse(http.StatusOK, body), nil
	})

	containers, err := client.ContainersByPart(context.Background(), "P-1", "J-B")
	if err != nil {
		t.Fatalf("containers by part: %v", err)
	}
	if len(containers) != 2 {
		t.Fatalf("expected J-B location to be filtered, got %d", len(containers))
	}
	if containers[0].SerialNo != "S-1" || containers[1].SerialNo != "S-3" {
		t.Fatalf("expected add-date ordering, got %+v", containers)
	}
	if containers[0].Quantity.String() != "8.25" || containers[1].Quantity.String() != "12.5" {
		t.Fatalf("unexpected quantities %s %s", containers[0].Quantity, containers[1].Quantity)
	}
}

func TestNewClientValidation(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected missing base url error")
	}
	cfg = testConfig()
	cfg.Password = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected missing credentials error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
