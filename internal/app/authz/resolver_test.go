package authz_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appauthz "github.com/astro-web3/teams-gate/internal/app/authz"
	"github.com/astro-web3/teams-gate/internal/domain/authz"
)

// strictBody fails the test if anything reads it.
type strictBody struct {
	t *testing.T
}

func (b strictBody) Read([]byte) (int, error) {
	b.t.Error("body must not be read when a query string is present")
	return 0, io.EOF
}

func (strictBody) Close() error { return nil }

func TestTeamResolver_QueryString(t *testing.T) {
	resolver := appauthz.NewTeamResolver(0)

	req := httptest.NewRequest(http.MethodGet, "/api/projects?teamId=T1&teamId=T9&x=1", nil)
	req.Body = strictBody{t: t}

	teamID, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if teamID != "T1" {
		t.Errorf("expected first occurrence T1, got %q", teamID)
	}
	if req.URL.RawQuery != "teamId=T1&teamId=T9&x=1" {
		t.Errorf("query string was mutated: %q", req.URL.RawQuery)
	}
}

func TestTeamResolver_QueryStringWithoutTeamID(t *testing.T) {
	resolver := appauthz.NewTeamResolver(0)

	req := httptest.NewRequest(http.MethodPost, "/api/projects?page=2", strings.NewReader(`{"teamId":"T2"}`))

	teamID, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if teamID != "" {
		t.Errorf("expected empty team id, got %q", teamID)
	}
}

func TestTeamResolver_BodyIsReplayable(t *testing.T) {
	resolver := appauthz.NewTeamResolver(0)
	payload := `{"name":"Launch plan","teamId":"T2","skills":["go"]}`

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(payload))

	teamID, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if teamID != "T2" {
		t.Errorf("expected T2, got %q", teamID)
	}

	got, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != payload {
		t.Errorf("downstream body differs:\n got %s\nwant %s", got, payload)
	}

	again, err := req.GetBody()
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	replayed, _ := io.ReadAll(again)
	if string(replayed) != payload {
		t.Errorf("GetBody should replay the full payload, got %s", replayed)
	}
}

func TestTeamResolver_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body io.Reader
	}{
		{name: "no body", body: nil},
		{name: "empty body", body: strings.NewReader("")},
		{name: "not json", body: strings.NewReader("teamId=T2")},
		{name: "truncated json", body: strings.NewReader(`{"teamId":`)},
		{name: "missing field", body: strings.NewReader(`{"name":"x"}`)},
		{name: "empty field", body: strings.NewReader(`{"teamId":""}`)},
		{name: "wrong type", body: strings.NewReader(`{"teamId":42}`)},
		{name: "json null", body: strings.NewReader(`null`)},
		{name: "invalid utf8", body: strings.NewReader("{\"teamId\":\"T\xff\"}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := appauthz.NewTeamResolver(0)
			req := httptest.NewRequest(http.MethodPost, "/api/projects", tt.body)

			teamID, err := resolver.Resolve(req)
			if !errors.Is(err, authz.ErrMalformedRequestBody) {
				t.Fatalf("expected ErrMalformedRequestBody, got %v", err)
			}
			if teamID != "" {
				t.Errorf("expected no team id on failure, got %q", teamID)
			}
		})
	}
}

func TestTeamResolver_BodyTooLarge(t *testing.T) {
	resolver := appauthz.NewTeamResolver(16)
	payload := `{"teamId":"T2","padding":"xxxxxxxxxxxxxxxx"}`
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(payload))

	_, err := resolver.Resolve(req)
	if !errors.Is(err, authz.ErrMalformedRequestBody) {
		t.Fatalf("expected ErrMalformedRequestBody, got %v", err)
	}

	got, _ := io.ReadAll(req.Body)
	if string(got) != payload {
		t.Errorf("oversized body should remain fully readable, got %s", got)
	}
}
