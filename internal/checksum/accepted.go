package checksum

import (
	"encoding/json"
	"strconv"
	"strings"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// acceptedIgnored are left out of the data hash. Document No. identifies the
// posting, not its content, so an acceptance outlives a re-issued document.
var acceptedIgnored = []string{
	model.FieldDocumentNo,
	model.FieldExceptionReasons,
	model.FieldSeverity,
}

// DataHash hashes canonical row JSON.
func DataHash(canonical []byte) string {
	return Sum(canonical)
}

// ReasonHash hashes the trimmed reason text.
func ReasonHash(reason string) string {
	return SumString(strings.TrimSpace(reason))
}

// CombinedHash binds a data hash to a reason hash.
func CombinedHash(dataHash, reasonHash string) string {
	return SumString(dataHash + reasonHash)
}

// AcceptedKey computes the suppression key for a row and its reason text.
func AcceptedKey(row tabular.Row, reason string) (model.AcceptedFingerprint, error) {
	canonical, err := CanonicalJSON(acceptedView(row))
	if err != nil {
		return model.AcceptedFingerprint{}, err
	}
	return acceptedFrom(canonical, reason), nil
}

// AcceptedKeyFromStored computes the suppression key from row JSON persisted
// by an earlier run.
func AcceptedKeyFromStored(stored []byte, reason string) (model.AcceptedFingerprint, error) {
	row, err := DecodeRow(stored)
	if err != nil {
		return model.AcceptedFingerprint{}, err
	}
	return AcceptedKey(row, reason)
}

// AcceptedKeyFromPosted computes the suppression key for a row snapshot a
// reviewer posts directly. Source files only yield text cells, so JSON numbers
// and booleans are keyed by their literal text.
func AcceptedKeyFromPosted(posted []byte, reason string) (model.AcceptedFingerprint, error) {
	row, err := DecodeRow(posted)
	if err != nil {
		return model.AcceptedFingerprint{}, err
	}
	for k, v := range row {
		switch t := v.(type) {
		case json.Number:
			row[k] = t.String()
		case bool:
			row[k] = strconv.FormatBool(t)
		}
	}
	return AcceptedKey(row, reason)
}

func acceptedView(row tabular.Row) tabular.Row {
	out := row.Clone()
	for _, f := range acceptedIgnored {
		delete(out, f)
	}
	return out
}

func acceptedFrom(canonical []byte, reason string) model.AcceptedFingerprint {
	dh := DataHash(canonical)
	rh := ReasonHash(reason)
	return model.AcceptedFingerprint{
		DataHash:     dh,
		ReasonHash:   rh,
		CombinedHash: CombinedHash(dh, rh),
	}
}
