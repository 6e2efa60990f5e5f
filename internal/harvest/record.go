package harvest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// RetrievedMessage is the status marker of a successful detail payload.
const RetrievedMessage = "Business has been retrieved"

var (
	ErrMalformedPayload = errors.New("malformed detail payload")
	ErrNotRetrieved     = errors.New("business not retrieved")
	ErrMissingUser      = errors.New("detail payload has no user object")
)

// ParseError marks a detail payload that yields no record.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse detail: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Columns is the fixed column order of a BusinessRecord.
var Columns = []string{
	"Business Id", "Business Category", "Business Name", "Contact Name", "Contact Email",
	"Business Email", "Phone", "Mobile", "Website", "Address", "City", "Zip Code",
	"Claimed", "Claim Verified", "Country", "Facebook", "Instagram", "Linkedin",
	"Tiktok", "Twitter", "URL",
}

// BusinessRecord is the flat output unit. All values are strings; missing
// source fields are empty.
type BusinessRecord struct {
	BusinessID       string `json:"business_id"`
	BusinessCategory string `json:"business_category"`
	BusinessName     string `json:"business_name"`
	ContactName      string `json:"contact_name"`
	ContactEmail     string `json:"contact_email"`
	BusinessEmail    string `json:"business_email"`
	Phone            string `json:"phone"`
	Mobile           string `json:"mobile"`
	Website          string `json:"website"`
	Address          string `json:"address"`
	City             string `json:"city"`
	ZipCode          string `json:"zip_code"`
	Claimed          string `json:"claimed"`
	ClaimVerified    string `json:"claim_verified"`
	Country          string `json:"country"`
	Facebook         string `json:"facebook"`
	Instagram        string `json:"instagram"`
	Linkedin         string `json:"linkedin"`
	Tiktok           string `json:"tiktok"`
	Twitter          string `json:"twitter"`
	URL              string `json:"url"`
}

// Columns returns the header names, in Row order.
func (r BusinessRecord) Columns() []string {
	out := make([]string, len(Columns))
	copy(out, Columns)
	return out
}

// Row returns the values in Columns order.
func (r BusinessRecord) Row() []string {
	return []string{
		r.BusinessID, r.BusinessCategory, r.BusinessName, r.ContactName, r.ContactEmail,
		r.BusinessEmail, r.Phone, r.Mobile, r.Website, r.Address, r.City, r.ZipCode,
		r.Claimed, r.ClaimVerified, r.Country, r.Facebook, r.Instagram, r.Linkedin,
		r.Tiktok, r.Twitter, r.URL,
	}
}

// Map returns the record keyed by column name.
func (r BusinessRecord) Map() map[string]string {
	row := r.Row()
	out := make(map[string]string, len(Columns))
	for i, c := range Columns {
		out[c] = row[i]
	}
	return out
}

// TriState renders a "1"/"0" flag as "Yes"/"No"; anything else is empty.
func TriState(raw string) string {
	switch raw {
	case "1":
		return "Yes"
	case "0":
		return "No"
	default:
		return ""
	}
}

// scalar accepts a JSON string, number, bool or null and keeps its text.
// Objects and arrays are a shape mismatch.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(str)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected scalar, got %s", kindOf(b[0]))
	default:
		// numbers and booleans keep their literal text
		*s = scalar(b)
	}
	return nil
}

func kindOf(c byte) string {
	if c == '{' {
		return "object"
	}
	return "array"
}

type detailUser struct {
	Name  scalar `json:"name"`
	Email scalar `json:"email"`
}

type detailMetadata struct {
	ID            scalar      `json:"id"`
	Name          scalar      `json:"name"`
	User          *detailUser `json:"user"`
	Email         scalar      `json:"email"`
	Phone         scalar      `json:"phone"`
	Mobile        scalar      `json:"mobile"`
	Website       scalar      `json:"website"`
	Address       scalar      `json:"address"`
	City          scalar      `json:"city"`
	Zipcode       scalar      `json:"zipcode"`
	Claimed       scalar      `json:"claimed"`
	ClaimVerified scalar      `json:"claim_verified"`
	CountryCode   scalar      `json:"country_code"`
	Facebook      scalar      `json:"facebook"`
	Instagram     scalar      `json:"instagram"`
	Linkedin      scalar      `json:"linkedin"`
	Tiktok        scalar      `json:"tiktok"`
	Twitter       scalar      `json:"twitter"`
	Link          scalar      `json:"link"`
}

type detailData struct {
	Metadata *detailMetadata `json:"metadata"`
}

type detailEnvelope struct {
	Message *string     `json:"message"`
	Data    *detailData `json:"data"`
}

// Parse maps one detail payload into a BusinessRecord. keyword is the
// path-escaped search term and becomes the unescaped Business Category.
// Parse has no hidden inputs: equal arguments give equal records.
func Parse(raw []byte, keyword string) (BusinessRecord, error) {
	var env detailEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return BusinessRecord{}, &ParseError{Err: fmt.Errorf("%w: %w", ErrMalformedPayload, err)}
	}

	if env.Message == nil || *env.Message != RetrievedMessage {
		msg := "<missing>"
		if env.Message != nil {
			msg = *env.Message
		}
		return BusinessRecord{}, &ParseError{Err: fmt.Errorf("%w: message %q", ErrNotRetrieved, msg)}
	}
	if env.Data == nil || env.Data.Metadata == nil {
		return BusinessRecord{}, &ParseError{Err: fmt.Errorf("%w: data.metadata missing", ErrMalformedPayload)}
	}
	md := env.Data.Metadata
	if md.User == nil {
		return BusinessRecord{}, &ParseError{Err: ErrMissingUser}
	}

	return BusinessRecord{
		BusinessID:       string(md.ID),
		BusinessCategory: unescapeKeyword(keyword),
		BusinessName:     string(md.Name),
		ContactName:      string(md.User.Name),
		ContactEmail:     string(md.User.Email),
		BusinessEmail:    string(md.Email),
		Phone:            string(md.Phone),
		Mobile:           string(md.Mobile),
		Website:          string(md.Website),
		Address:          string(md.Address),
		City:             string(md.City),
		ZipCode:          string(md.Zipcode),
		Claimed:          TriState(string(md.Claimed)),
		ClaimVerified:    TriState(string(md.ClaimVerified)),
		Country:          string(md.CountryCode),
		Facebook:         string(md.Facebook),
		Instagram:        string(md.Instagram),
		Linkedin:         string(md.Linkedin),
		Tiktok:           string(md.Tiktok),
		Twitter:          string(md.Twitter),
		URL:              listingPath(string(md.ID), string(md.Link)),
	}, nil
}

// listingPath is the site-relative listing URL, "/{id}{link}". The payload's
// link already starts with a slash.
func listingPath(id, link string) string {
	return "/" + id + link
}

func unescapeKeyword(keyword string) string {
	if s, err := url.PathUnescape(keyword); err == nil {
		return s
	}
	return keyword
}
