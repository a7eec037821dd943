package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polyedge/internal/models"
)

func TestParseProbability(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"I believe the likelihood `0.6` for outcome of `Yes`.", 0.6, true},
		{"likelihood '70%' for outcome of 'No'", 0.3, true},
		{"There is a 60% probability for Yes", 0.6, true},
		{"Roughly a 25% chance of No", 0.75, true},
		{"Final answer: `0.35`", 0.35, true},
		{"I cannot say.", 0, false},
		{"likelihood `250` for outcome of `Yes`", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseProbability(tt.text)
		if ok != tt.wantOK {
			t.Errorf("ParseProbability(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseProbability(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func testMarket() *models.Market {
	return &models.Market{
		ID:            "m1",
		Question:      "Will it happen?",
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{0.5, 0.5},
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]float64{"m1": 65})

	p, err := s.Forecast(context.Background(), testMarket())
	if err != nil || p != 0.65 {
		t.Errorf("Forecast() = %v, %v, want 0.65, nil", p, err)
	}

	other := testMarket()
	other.ID = "m2"
	if _, err := s.Forecast(context.Background(), other); !errors.Is(err, ErrNoForecast) {
		t.Errorf("Forecast(unknown) error = %v, want ErrNoForecast", err)
	}
}

func TestYesProbability_Fallback(t *testing.T) {
	s := NewStatic(nil)
	p, ok := YesProbability(context.Background(), s, testMarket())
	if ok || p != NeutralProbability {
		t.Errorf("YesProbability() = %v, %v, want %v, false", p, ok, NeutralProbability)
	}

	p, ok = YesProbability(context.Background(), Neutral{}, testMarket())
	if !ok || p != NeutralProbability {
		t.Errorf("YesProbability(Neutral) = %v, %v, want %v, true", p, ok, NeutralProbability)
	}
}

func TestHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"question":"Will it happen?"`) {
			t.Errorf("request body = %s", body)
		}
		w.Write([]byte("After weighing the evidence, likelihood `0.72` for outcome of `Yes`"))
	}))
	defer server.Close()

	h := NewHTTP(server.URL, 5*time.Second)
	p, err := h.Forecast(context.Background(), testMarket())
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if p != 0.72 {
		t.Errorf("Forecast() = %v, want 0.72", p)
	}
}

func TestHTTP_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"unparseable", http.StatusOK, "no idea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := NewHTTP(server.URL, time.Second).Forecast(context.Background(), testMarket()); err == nil {
				t.Error("Forecast() error = nil, want error")
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"static", Config{Mode: "static", Probabilities: map[string]float64{"m1": 60}}, "*forecast.Static", false},
		{"neutral", Config{Mode: "neutral"}, "forecast.Neutral", false},
		{"http", Config{Mode: "http", URL: "http://localhost:9000", Timeout: time.Second}, "*forecast.HTTP", false},
		{"http without url", Config{Mode: "http", Timeout: time.Second}, "", true},
		{"unknown mode", Config{Mode: "oracle"}, "", true},
		{"bad probability", Config{Mode: "static", Probabilities: map[string]float64{"m1": -1}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if got := fmt.Sprintf("%T", f); got != tt.want {
					t.Errorf("New() = %s, want %s", got, tt.want)
				}
			}
		})
	}
}
