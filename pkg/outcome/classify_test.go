package outcome

import (
	"errors"
	"testing"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name         string
		status       int
		body         string
		transportErr error
		wantCode     domain.ErrorCode
		wantRetry    bool
	}{
		{"http 200", 200, "", nil, domain.CodeOK, false},
		{"http 201", 201, "", nil, domain.CodeOK, false},
		{"http 409", 409, "", nil, domain.CodeDuplicate, false},
		{"http 429", 429, "", nil, domain.CodeRateLimit, true},
		{"http 500", 500, "", nil, domain.CodeTempUnavailable, true},
		{"http 503", 503, "", nil, domain.CodeTempUnavailable, true},
		{"transport timeout", 0, "", errors.New("context deadline exceeded"), domain.CodeTempUnavailable, true},
		{"400 signature keyword", 400, `{"message":"invalid SIGNATURE on request"}`, nil, domain.CodeInvalidSignature, false},
		{"400 signatransm keyword", 400, `{"codRetour":"E-SIGNATRANSM","mess":"champ invalide"}`, nil, domain.CodeInvalidSignature, false},
		{"400 header keyword", 400, `{"message":"missing header ENVIRN"}`, nil, domain.CodeInvalidHeader, false},
		{"400 unknown", 400, `{"message":"champ total manquant"}`, nil, domain.CodeUnknown, false},
		{"403 unknown", 403, "forbidden", nil, domain.CodeUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.status, []byte(tc.body), tc.transportErr)
			if got.Code != tc.wantCode {
				t.Fatalf("code = %s, want %s", got.Code, tc.wantCode)
			}
			if got.Retryable != tc.wantRetry {
				t.Fatalf("retryable = %v, want %v", got.Retryable, tc.wantRetry)
			}
			if tc.transportErr == nil && got.HTTPStatus != tc.status {
				t.Fatalf("http status = %d, want %d", got.HTTPStatus, tc.status)
			}
		})
	}
}

func TestClassifyDuplicateIsAccepted(t *testing.T) {
	if !Classify(409, nil, nil).Accepted() {
		t.Fatalf("409 must be treated as success-equivalent")
	}
	if !Classify(200, nil, nil).Accepted() {
		t.Fatalf("200 must be accepted")
	}
	if Classify(500, nil, nil).Accepted() {
		t.Fatalf("500 must not be accepted")
	}
}

func TestMatchKeywords(t *testing.T) {
	cases := []struct {
		text string
		want domain.ErrorCode
	}{
		{"SIGNATRANSM invalide", domain.CodeInvalidSignature},
		{"empreinte du certificat inconnue", domain.CodeInvalidSignature},
		{"entete manquante", domain.CodeInvalidHeader},
		{"bad header value", domain.CodeInvalidHeader},
		{"montant invalide", domain.CodeUnknown},
		{"", domain.CodeUnknown},
	}
	for _, tc := range cases {
		if got := MatchKeywords(tc.text); got != tc.want {
			t.Fatalf("MatchKeywords(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestExtractRawErrorShapes(t *testing.T) {
	code, msg := extractRawError([]byte(`{"codRetour":"12","mess":"entete invalide"}`))
	if code != "12" || msg != "entete invalide" {
		t.Fatalf("protocol shape not extracted: %q %q", code, msg)
	}
	code, msg = extractRawError([]byte(`{"code":"E1","message":"bad"}`))
	if code != "E1" || msg != "bad" {
		t.Fatalf("generic shape not extracted: %q %q", code, msg)
	}
	_, msg = extractRawError([]byte("plain text failure"))
	if msg != "plain text failure" {
		t.Fatalf("plain body must pass through, got %q", msg)
	}
}
