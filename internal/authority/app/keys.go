package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authority/pkg/cryptox"
)

// Key sources, reported in the start-up log.
const (
	KeySourceExplicit  = "explicit"
	KeySourceDerived   = "derived"
	KeySourceEphemeral = "ephemeral"
)

// SigningKeys are the two independent HS512 keys. Access tokens and
// confirmation tokens must never verify under each other's key.
type SigningKeys struct {
	Access       []byte
	Confirmation []byte
	Source       string
}

var errSharedKey = errors.New("access and confirmation keys must differ")

// InitSigningKeys resolves the signing keys.
//
// Sources, in order of preference:
//   - explicit: both AccessKey and ConfirmationKey are set (base64).
//   - derived: MasterSecret is set and each key is expanded from it with
//     HKDF-SHA-512 under its own label.
//   - ephemeral: fresh random keys. Tokens do not survive a restart, so
//     this is refused outside dev.
func InitSigningKeys(cfg Config, logger *slog.Logger) (SigningKeys, error) {
	switch {
	case cfg.AccessKey != "" || cfg.ConfirmationKey != "":
		if cfg.AccessKey == "" || cfg.ConfirmationKey == "" {
			return SigningKeys{}, errors.New("both access and confirmation keys must be set")
		}
		access, err := cryptox.DecodeKey(cfg.AccessKey)
		if err != nil {
			return SigningKeys{}, fmt.Errorf("access key: %w", err)
		}
		confirmation, err := cryptox.DecodeKey(cfg.ConfirmationKey)
		if err != nil {
			return SigningKeys{}, fmt.Errorf("confirmation key: %w", err)
		}
		if bytes.Equal(access, confirmation) {
			return SigningKeys{}, errSharedKey
		}
		logger.Info("signing keys loaded", "source", KeySourceExplicit)
		return SigningKeys{Access: access, Confirmation: confirmation, Source: KeySourceExplicit}, nil

	case cfg.MasterSecret != "":
		master, err := cryptox.DecodeKey(cfg.MasterSecret)
		if err != nil {
			return SigningKeys{}, fmt.Errorf("master secret: %w", err)
		}
		access, err := cryptox.DeriveKey(master, cryptox.LabelAccessKey)
		if err != nil {
			return SigningKeys{}, err
		}
		confirmation, err := cryptox.DeriveKey(master, cryptox.LabelConfirmationKey)
		if err != nil {
			return SigningKeys{}, err
		}
		logger.Info("signing keys derived from master secret", "source", KeySourceDerived)
		return SigningKeys{Access: access, Confirmation: confirmation, Source: KeySourceDerived}, nil

	default:
		if cfg.Env != "dev" {
			return SigningKeys{}, fmt.Errorf("no signing keys configured for env %q", cfg.Env)
		}
		access, err := cryptox.GenerateKey(cryptox.MinHMACKeySize)
		if err != nil {
			return SigningKeys{}, err
		}
		confirmation, err := cryptox.GenerateKey(cryptox.MinHMACKeySize)
		if err != nil {
			return SigningKeys{}, err
		}
		logger.Warn("using ephemeral signing keys, all tokens become invalid on restart",
			"source", KeySourceEphemeral)
		return SigningKeys{Access: access, Confirmation: confirmation, Source: KeySourceEphemeral}, nil
	}
}
