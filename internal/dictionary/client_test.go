package dictionary

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const nekoResponse = `{
  "meta": {"status": 200},
  "data": [
    {
      "slug": "猫",
      "is_common": true,
      "japanese": [{"word": "猫", "reading": "ねこ"}, {"word": "ネコ", "reading": "ネコ"}],
      "senses": [
        {"english_definitions": ["cat"], "parts_of_speech": ["Noun"]},
        {"english_definitions": ["shamisen"], "parts_of_speech": ["Noun"]}
      ]
    },
    {
      "slug": "猫舌",
      "japanese": [{"word": "猫舌", "reading": "ねこじた"}],
      "senses": [{"english_definitions": ["being unable to handle hot food"]}]
    }
  ]
}`

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := NewClient(&ClientOptions{
		HTTPClient:        &http.Client{Transport: transport},
		RequestsPerSecond: -1,
	})
	return client, transport
}

func TestLookup_WrittenMatch(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponderWithQuery(http.MethodGet, jishoSearchURL,
		map[string]string{"keyword": `"猫"`},
		httpmock.NewStringResponder(200, nekoResponse))

	got, err := client.Lookup(context.Background(), "猫")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil {
		t.Fatal("Lookup() returned nil, want entry")
	}
	if got.KanaOnly {
		t.Error("KanaOnly = true, want false")
	}
	if got.Entry.Slug != "猫" {
		t.Errorf("Slug = %q, want 猫", got.Entry.Slug)
	}
	if got.Entry.English() != "cat<br/>shamisen" {
		t.Errorf("English() = %q", got.Entry.English())
	}
}

func TestLookup_KanaOnly(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, jishoSearchURL,
		httpmock.NewStringResponder(200, `{"meta":{"status":200},"data":[{"slug":"ねこ","japanese":[{"reading":"ねこ"}],"senses":[{"english_definitions":["cat"]}]}]}`))

	got, err := client.Lookup(context.Background(), "ねこ")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil || !got.KanaOnly {
		t.Fatalf("Lookup() = %+v, want kana only match", got)
	}
}

func TestLookup_Absent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no data", `{"meta":{"status":200},"data":[]}`},
		{"first entry does not match", `{"meta":{"status":200},"data":[{"slug":"犬","japanese":[{"word":"犬","reading":"いぬ"}]},{"slug":"猫","japanese":[{"word":"猫","reading":"ねこ"}]}]}`},
		{"only empty surface forms", `{"meta":{"status":200},"data":[{"slug":"猫","japanese":[{}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, jishoSearchURL,
				httpmock.NewStringResponder(200, tt.body))

			got, err := client.Lookup(context.Background(), "猫")
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != nil {
				t.Errorf("Lookup() = %+v, want nil", got)
			}
		})
	}
}

func TestLookup_KeepsEmptyFirstForm(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, jishoSearchURL,
		httpmock.NewStringResponder(200, `{"meta":{"status":200},"data":[{"slug":"猫","japanese":[{},{"word":"猫","reading":"ねこ"}],"senses":[{"english_definitions":["cat"]}]}]}`))

	got, err := client.Lookup(context.Background(), "猫")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil {
		t.Fatal("Lookup() returned nil, want entry matched on the second form")
	}
	if n := len(got.Entry.Japanese); n != 2 {
		t.Fatalf("surface forms = %d, want 2 in provider order", n)
	}
	if reading, ok := ResolveReading(got.Entry, "猫", got.KanaOnly); ok {
		t.Errorf("ResolveReading() = %q, want skip for a first form without reading", reading)
	}
}

func TestLookup_CachesResults(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, jishoSearchURL,
		httpmock.NewStringResponder(200, `{"meta":{"status":200},"data":[]}`))

	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(context.Background(), "猫"); err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
	}

	if n := transport.GetTotalCallCount(); n != 1 {
		t.Errorf("expected 1 HTTP call, got %d", n)
	}
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(500, "boom")},
		{"bad json", httpmock.NewStringResponder(200, "{not json")},
		{"transport error", httpmock.NewErrorResponder(errors.New("connection reset"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, jishoSearchURL, tt.responder)

			got, err := client.Lookup(context.Background(), "猫")
			if err == nil {
				t.Fatalf("Lookup() = %+v, want error", got)
			}
		})
	}
}

func TestLookup_BreakerOpensAfterFailures(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, jishoSearchURL,
		httpmock.NewStringResponder(503, "unavailable"))

	words := []string{"一", "二", "三", "四", "五"}
	for _, w := range words {
		if _, err := client.Lookup(context.Background(), w); err == nil {
			t.Fatalf("Lookup(%s) expected error", w)
		}
	}

	if n := transport.GetTotalCallCount(); n != breakerTripAfter {
		t.Errorf("expected %d HTTP calls before the breaker opened, got %d", breakerTripAfter, n)
	}
}

func TestLookup_RateLimited(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, jishoSearchURL,
		httpmock.NewStringResponder(200, nekoResponse))
	client := NewClient(&ClientOptions{
		HTTPClient:        &http.Client{Transport: transport},
		RequestsPerSecond: 0.01,
	})

	if _, err := client.Lookup(context.Background(), "猫"); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	// cached, no token needed
	if _, err := client.Lookup(context.Background(), "猫"); err != nil {
		t.Fatalf("cached Lookup() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.Lookup(ctx, "犬"); err == nil {
		t.Fatal("expected the limiter to refuse the request")
	}
	if n := transport.GetTotalCallCount(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}
