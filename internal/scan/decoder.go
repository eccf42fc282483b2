// Package scan validates the raw strings produced by the QR capture clients.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/example/qr-pointage/internal/attendance"
)

// ErrInvalidPayload is returned for malformed or unrecognised scan data.
var ErrInvalidPayload = errors.New("scan: invalid payload")

const (
	DefaultMarker = "Tevia Energie Pass Ok"
	DefaultSite   = "Bureau principal"

	totpPeriod = 30
	totpSkew   = 1
)

// Mode selects how payloads are validated.
type Mode string

const (
	// ModeMarker accepts a fixed marker string printed on the office QR code.
	ModeMarker Mode = "marker"
	// ModeStructured accepts a JSON object carrying an entry or exit type.
	ModeStructured Mode = "structured"
	// ModeTOTP accepts a JSON object carrying a rotating one-time code.
	ModeTOTP Mode = "totp"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ModeMarker, ModeStructured, ModeTOTP:
		return mode, nil
	}
	return "", fmt.Errorf("scan: unknown mode %q", value)
}

// Options configures a Decoder.
type Options struct {
	Mode       Mode
	Marker     string
	TOTPSecret string
	Site       string
	Now        func() time.Time
}

// Payload is the validated content of a scan.
type Payload struct {
	Kind      attendance.ScanKind
	Site      string
	Timestamp *time.Time
}

// Decoder validates raw scan strings according to its mode.
type Decoder struct {
	mode   Mode
	marker string
	secret string
	site   string
	now    func() time.Time
}

// NewDecoder builds a decoder, applying defaults for empty options.
func NewDecoder(opts Options) (*Decoder, error) {
	if opts.Mode == "" {
		opts.Mode = ModeMarker
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Site == "" {
		opts.Site = DefaultSite
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	secret := strings.ToUpper(strings.TrimSpace(opts.TOTPSecret))
	if opts.Mode == ModeTOTP && secret == "" {
		return nil, errors.New("scan: totp mode requires a secret")
	}

	return &Decoder{
		mode:   opts.Mode,
		marker: opts.Marker,
		secret: secret,
		site:   opts.Site,
		now:    opts.Now,
	}, nil
}

// Mode returns the configured validation mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Decode validates raw and returns the scan intent it carries.
func (d *Decoder) Decode(raw string) (Payload, error) {
	switch d.mode {
	case ModeStructured:
		return d.decodeStructured(raw)
	case ModeTOTP:
		return d.decodeTOTP(raw)
	default:
		return d.decodeMarker(raw)
	}
}

func (d *Decoder) decodeMarker(raw string) (Payload, error) {
	if strings.TrimSpace(raw) != d.marker {
		return Payload{}, ErrInvalidPayload
	}
	return Payload{Kind: attendance.ScanToggle, Site: d.site}, nil
}

type structuredBody struct {
	Type      string  `json:"type,omitempty"`
	Location  string  `json:"location,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
	Code      string  `json:"code,omitempty"`
}

func (d *Decoder) decodeStructured(raw string) (Payload, error) {
	body, err := parseBody(raw)
	if err != nil {
		return Payload{}, err
	}

	kind, err := parseKind(body.Type, false)
	if err != nil {
		return Payload{}, err
	}
	return d.payloadFrom(body, kind)
}

func (d *Decoder) decodeTOTP(raw string) (Payload, error) {
	body, err := parseBody(raw)
	if err != nil {
		return Payload{}, err
	}

	code := strings.TrimSpace(body.Code)
	if code == "" {
		return Payload{}, fmt.Errorf("%w: missing code", ErrInvalidPayload)
	}
	valid, err := totp.ValidateCustom(code, d.secret, d.now().UTC(), totpOptions())
	if err != nil || !valid {
		return Payload{}, fmt.Errorf("%w: code rejected", ErrInvalidPayload)
	}

	kind, err := parseKind(body.Type, true)
	if err != nil {
		return Payload{}, err
	}
	return d.payloadFrom(body, kind)
}

// CurrentCode returns the one-time code a kiosk should encode right now.
func (d *Decoder) CurrentCode() (string, error) {
	if d.mode != ModeTOTP {
		return "", fmt.Errorf("scan: mode %s does not issue codes", d.mode)
	}
	return d.codeAt(d.now().UTC())
}

func (d *Decoder) codeAt(t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(d.secret, t, totpOptions())
	if err != nil {
		return "", fmt.Errorf("scan: generate code: %w", err)
	}
	return code, nil
}

// KioskCode is a string a kiosk encodes as a QR code.
type KioskCode struct {
	Kind    attendance.ScanKind
	Payload string
	// ValidUntil is set for rotating codes.
	ValidUntil *time.Time
}

// KioskCodes returns the codes a kiosk should display right now: the marker,
// one code per scan kind in structured mode, or the current one-time code.
func (d *Decoder) KioskCodes() ([]KioskCode, error) {
	switch d.mode {
	case ModeStructured:
		codes := make([]KioskCode, 0, 2)
		for _, kind := range []attendance.ScanKind{attendance.ScanEntry, attendance.ScanExit} {
			payload, err := json.Marshal(structuredBody{Type: string(kind), Location: d.site})
			if err != nil {
				return nil, err
			}
			codes = append(codes, KioskCode{Kind: kind, Payload: string(payload)})
		}
		return codes, nil
	case ModeTOTP:
		now := d.now().UTC()
		code, err := d.codeAt(now)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(structuredBody{Location: d.site, Code: code})
		if err != nil {
			return nil, err
		}
		until := time.Unix(now.Unix()-now.Unix()%totpPeriod+totpPeriod, 0).UTC()
		return []KioskCode{{Kind: attendance.ScanToggle, Payload: string(payload), ValidUntil: &until}}, nil
	default:
		return []KioskCode{{Kind: attendance.ScanToggle, Payload: d.marker}}, nil
	}
}

func (d *Decoder) payloadFrom(body structuredBody, kind attendance.ScanKind) (Payload, error) {
	payload := Payload{Kind: kind, Site: d.site}
	if site := strings.TrimSpace(body.Location); site != "" {
		payload.Site = site
	}
	if body.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*body.Timestamp))
		if err != nil {
			return Payload{}, fmt.Errorf("%w: timestamp", ErrInvalidPayload)
		}
		payload.Timestamp = &ts
	}
	return payload, nil
}

func parseBody(raw string) (structuredBody, error) {
	var body structuredBody
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return structuredBody{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if decoder.More() {
		return structuredBody{}, fmt.Errorf("%w: trailing data", ErrInvalidPayload)
	}
	return body, nil
}

func parseKind(value string, optional bool) (attendance.ScanKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "entry":
		return attendance.ScanEntry, nil
	case "exit":
		return attendance.ScanExit, nil
	case "":
		if optional {
			return attendance.ScanToggle, nil
		}
	}
	return "", fmt.Errorf("%w: type %q", ErrInvalidPayload, value)
}

func totpOptions() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
