package outcome

import (
	"encoding/json"
	"strings"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// Classify maps one raw transmission outcome into the closed error taxonomy.
// Decision order: transport fault, 2xx, 409, 429, 5xx, keyword inspection of
// the remaining 4xx body, UNKNOWN.
func Classify(status int, body []byte, transportErr error) domain.NormalizedError {
	if transportErr != nil {
		return domain.NormalizedError{
			Code:       domain.CodeTempUnavailable,
			Retryable:  true,
			RawMessage: Sanitize(transportErr.Error()),
		}
	}

	switch {
	case status >= 200 && status < 300:
		return domain.NormalizedError{Code: domain.CodeOK, HTTPStatus: status}
	case status == 409:
		return domain.NormalizedError{Code: domain.CodeDuplicate, HTTPStatus: status}
	case status == 429:
		return domain.NormalizedError{Code: domain.CodeRateLimit, Retryable: true, HTTPStatus: status}
	case status >= 500:
		return domain.NormalizedError{Code: domain.CodeTempUnavailable, Retryable: true, HTTPStatus: status}
	}

	rawCode, rawMessage := extractRawError(body)
	return domain.NormalizedError{
		Code:       MatchKeywords(rawCode + " " + rawMessage),
		Retryable:  false,
		HTTPStatus: status,
		RawCode:    Sanitize(rawCode),
		RawMessage: Sanitize(rawMessage),
	}
}

// Keyword tables for 4xx triage. The scan is a heuristic kept deliberately
// small and stable; misclassified codes land in UNKNOWN, which is always
// surfaced for operator review rather than retried.
var (
	signatureKeywords = []string{
		"signatransm",
		"signature",
		"emprcertiftransm",
		"empreinte",
		"certificat",
	}
	headerKeywords = []string{
		"entete",
		"header",
		"idappr",
		"idsev",
		"idpartn",
		"envirn",
	}
)

// MatchKeywords classifies raw regulator error text by keyword. Signature
// keywords win over header keywords; anything else is UNKNOWN.
func MatchKeywords(text string) domain.ErrorCode {
	lower := strings.ToLower(text)
	for _, kw := range signatureKeywords {
		if strings.Contains(lower, kw) {
			return domain.CodeInvalidSignature
		}
	}
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return domain.CodeInvalidHeader
		}
	}
	return domain.CodeUnknown
}

// extractRawError pulls a code and message out of a regulator error body.
// Both the protocol's French field names and generic shapes are accepted;
// an undecodable body is carried as the message verbatim.
func extractRawError(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var payload struct {
		CodRetour string `json:"codRetour"`
		Mess      string `json:"mess"`
		Code      string `json:"code"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", string(body)
	}
	code = payload.CodRetour
	if code == "" {
		code = payload.Code
	}
	message = payload.Mess
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = payload.Error
	}
	if code == "" && message == "" {
		return "", string(body)
	}
	return code, message
}
