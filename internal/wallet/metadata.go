package wallet

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidMetadata = errors.New("wallet: invalid dapp metadata")

// DappMetadata identifies this client to the wallet on connect.
type DappMetadata struct {
	Name        string `json:"name" toml:"name"`
	Description string `json:"description" toml:"description"`
	Logo        string `json:"logo" toml:"logo"`
	URL         string `json:"url" toml:"url"`
}

// DefaultDappMetadata describes the demo client served from origin.
func DefaultDappMetadata(origin string) DappMetadata {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	return DappMetadata{
		Name:        "Ribbit DApp Demo",
		Description: "A demo application showcasing Ribbit Wallet Connect SDK",
		Logo:        origin + "/assets/icon256.png",
		URL:         origin,
	}
}

// Normalize trims every field.
func (m DappMetadata) Normalize() DappMetadata {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	m.Logo = strings.TrimSpace(m.Logo)
	m.URL = strings.TrimSpace(m.URL)
	return m
}

func (m DappMetadata) Validate() error {
	m = m.Normalize()
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	}
	if m.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidMetadata)
	}
	if err := absoluteURL(m.URL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidMetadata, err)
	}
	if m.Logo != "" {
		if err := absoluteURL(m.Logo); err != nil {
			return fmt.Errorf("%w: logo: %v", ErrInvalidMetadata, err)
		}
	}
	return nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
