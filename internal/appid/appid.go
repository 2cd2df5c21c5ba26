package appid

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Default returns the built-in identity used when no `.fulmen/app.yaml` is
// discoverable, so standalone binaries still know their name and env prefix.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  "postly",
		Vendor:      "postly",
		EnvPrefix:   "POSTLY_",
		ConfigName:  "postly",
		Description: "AI social post generator for product photos",
	}
}

// Get resolves the app identity. An explicit FULMEN_APP_IDENTITY_PATH stays
// authoritative: when it points at a missing file the error is returned.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := appidentity.Get(ctx)
	if err == nil {
		return identity, nil
	}

	var notFound *appidentity.NotFoundError
	if errors.As(err, &notFound) && strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) == "" {
		return Default(), nil
	}
	return nil, err
}
