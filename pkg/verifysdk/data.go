package verifysdk

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/validx"
)

// Data shapes accepted by Start. Every field is optional: a verification may
// start with partial data and the service decides when it is complete. Fields
// that are present must be well formed.

type EmailData struct {
	Email                string `json:"email,omitempty" validate:"omitempty,email"`
	Code                 string `json:"code,omitempty"`
	Confirmed            bool   `json:"confirmed,omitempty"`
	ConfirmationAttempts int    `json:"confirmation_attempts,omitempty" validate:"gte=0"`
}

type ProviderMetadata struct {
	Service   string `json:"service"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type PhoneData struct {
	PhoneNumber          string            `json:"phone_number,omitempty" validate:"omitempty,phone"`
	CountryCode          string            `json:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Code                 string            `json:"code,omitempty"`
	Confirmed            bool              `json:"confirmed,omitempty"`
	ConfirmationAttempts int               `json:"confirmation_attempts,omitempty" validate:"gte=0"`
	ProviderMetadata     *ProviderMetadata `json:"provider_metadata,omitempty"`
}

type DocumentFiles struct {
	Front  string `json:"front,omitempty"`
	Back   string `json:"back,omitempty"`
	Selfie string `json:"selfie,omitempty"`
}

type VerificationProvider struct {
	Name        string         `json:"name"`
	ReferenceID string         `json:"reference_id,omitempty"`
	Score       *float64       `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Details     map[string]any `json:"details,omitempty"`
}

type DocumentData struct {
	DocumentType         string                `json:"document_type,omitempty" validate:"omitempty,oneof=passport id_card driving_license"`
	DocumentNumber       string                `json:"document_number,omitempty" validate:"omitempty,alphanum"`
	IssuingCountry       string                `json:"issuing_country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	ExpiryDate           string                `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Files                *DocumentFiles        `json:"files,omitempty"`
	VerificationProvider *VerificationProvider `json:"verification_provider,omitempty"`
}

type VideoProviderMetadata struct {
	Service         string   `json:"service"`
	ReferenceID     string   `json:"reference_id,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	FaceMatchScore  *float64 `json:"face_match_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type VideoData struct {
	VideoURL          string                 `json:"video_url,omitempty" validate:"omitempty,url"`
	Duration          float64                `json:"duration,omitempty" validate:"gte=0"`
	FileSize          int64                  `json:"file_size,omitempty" validate:"gte=0"`
	GesturesCompleted bool                   `json:"gestures_completed,omitempty"`
	FaceMatched       bool                   `json:"face_matched,omitempty"`
	ProviderMetadata  *VideoProviderMetadata `json:"provider_metadata,omitempty"`
}

type SocialData struct {
	Platform           string `json:"platform,omitempty" validate:"omitempty,oneof=twitter facebook linkedin github"`
	ProfileURL         string `json:"profile_url,omitempty" validate:"omitempty,url"`
	Username           string `json:"username,omitempty"`
	FollowersCount     *int   `json:"followers_count,omitempty" validate:"omitempty,gte=0"`
	AccountAge         *int   `json:"account_age,omitempty" validate:"omitempty,gte=0"`
	VerificationPostID string `json:"verification_post_id,omitempty"`
	Verified           bool   `json:"verified,omitempty"`
}

type WalletData struct {
	Address   string `json:"address,omitempty"`
	Chain     string `json:"chain,omitempty"`
	Balance   string `json:"balance,omitempty" validate:"omitempty,numeric"`
	NFTCount  *int   `json:"nft_count,omitempty" validate:"omitempty,gte=0"`
	Signature string `json:"signature,omitempty" validate:"omitempty,hexadecimal"`
	Message   string `json:"message,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
}

// evmChains use 0x-prefixed 20 byte addresses.
var evmChains = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism", "base", "avalanche"}

func (d *WalletData) validate() error {
	if d.Address == "" || !slices.Contains(evmChains, strings.ToLower(d.Chain)) {
		return nil
	}
	return validx.Var("address", d.Address, "eth_addr")
}

// shapeFor returns a zero value of the data struct for t.
func shapeFor(t Type) any {
	switch t {
	case TypeEmail:
		return &EmailData{}
	case TypePhone:
		return &PhoneData{}
	case TypeDocument:
		return &DocumentData{}
	case TypeVideo:
		return &VideoData{}
	case TypeSocial:
		return &SocialData{}
	case TypeWallet:
		return &WalletData{}
	}
	return nil
}

// validateData checks that data fits the shape for t and returns its JSON
// form. data may be one of the *Data structs, a map, or raw JSON.
func validateData(t Type, data any) (json.RawMessage, error) {
	raw := json.RawMessage("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, apierr.ErrInvalidFormat.WithDetails(map[string]any{"type": string(t), "reason": err.Error()})
		}
		if !bytes.Equal(b, []byte("null")) {
			raw = b
		}
	}

	shape := shapeFor(t)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(shape); err != nil {
		return nil, apierr.ErrInvalidFormat.WithDetails(map[string]any{"type": string(t), "reason": err.Error()})
	}

	if err := validx.Struct(shape); err != nil {
		return nil, err
	}
	if w, ok := shape.(*WalletData); ok {
		if err := w.validate(); err != nil {
			return nil, err
		}
	}
	return raw, nil
}
