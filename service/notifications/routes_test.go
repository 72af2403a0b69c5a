package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendNotification_Validation(t *testing.T) {
	h := NewNotificationHandler(nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing token", `{"title":"Crew update","body":"Job moved to Friday"}`},
		{"missing title", `{"token":"ExponentPushToken[abc]","body":"Job moved to Friday"}`},
		{"missing body", `{"token":"ExponentPushToken[abc]","title":"Crew update"}`},
		{"bad token format", `{"token":"not-a-push-token","title":"Crew update","body":"Job moved to Friday"}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()

		h.SendNotification(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestStringifyData(t *testing.T) {
	if stringifyData(nil) != nil {
		t.Fatal("nil data should stay nil")
	}

	got := stringifyData(map[string]interface{}{"lead_id": uint(42), "source": "website"})
	if got["lead_id"] != "42" {
		t.Errorf("lead_id = %q, want %q", got["lead_id"], "42")
	}
	if got["source"] != "website" {
		t.Errorf("source = %q, want %q", got["source"], "website")
	}
}
