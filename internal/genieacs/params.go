package genieacs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeString = "xsd:string"

	suffix5G = "-5G"
)

// ParameterValue is one setParameterValues entry. It marshals to the NBI
// triple [path, value, type].
type ParameterValue struct {
	Path  string
	Value string
	Type  string
}

func (p ParameterValue) MarshalJSON() ([]byte, error) {
	typ := p.Type
	if typ == "" {
		typ = TypeString
	}
	return json.Marshal([]string{p.Path, p.Value, typ})
}

// StringParam builds an xsd:string parameter.
func StringParam(path, value string) ParameterValue {
	return ParameterValue{Path: path, Value: value, Type: TypeString}
}

// SSIDUpdates targets the 5 GHz radio when the name ends in -5G and the
// 2.4 GHz radio otherwise, on both data models.
func SSIDUpdates(ssid string) []ParameterValue {
	index := 1
	if strings.HasSuffix(ssid, suffix5G) {
		index = 5
	}
	return []ParameterValue{
		StringParam(fmt.Sprintf("%s.%d.SSID", wlanObject, index), ssid),
		StringParam(fmt.Sprintf("Device.WiFi.SSID.%d.SSID", index), ssid),
	}
}

// PasswordUpdates writes the passphrase to both radios under every path an
// ONT may read it from.
func PasswordUpdates(password string) []ParameterValue {
	var out []ParameterValue
	for _, index := range []int{1, 5} {
		base := fmt.Sprintf("%s.%d", wlanObject, index)
		out = append(out,
			StringParam(base+".PreSharedKey.1.KeyPassphrase", password),
			StringParam(base+".KeyPassphrase", password),
			StringParam(base+".PreSharedKey.1.PreSharedKey", password),
		)
	}
	return out
}

var wlan5GIndexes = []int{5, 6, 7, 8}

// UpdateSSID renames the 2.4 GHz network and sets name+"-5G" on the first
// 5 GHz WLAN index the device accepts, then refreshes the WLAN tree.
func (c *Client) UpdateSSID(ctx context.Context, id, ssid string) error {
	base := strings.TrimSuffix(ssid, suffix5G)
	if err := c.SetParameterValues(ctx, id, []ParameterValue{
		StringParam(wlanObject+".1.SSID", base),
	}); err != nil {
		return fmt.Errorf("set 2.4GHz SSID: %w", err)
	}

	for _, index := range wlan5GIndexes {
		err := c.SetParameterValues(ctx, id, []ParameterValue{
			StringParam(fmt.Sprintf("%s.%d.SSID", wlanObject, index), base+suffix5G),
		})
		if err == nil {
			break
		}
		c.logger.Debug().Err(err).Int("index", index).Msg("5GHz SSID index rejected")
	}

	return c.RefreshWLAN(ctx, id)
}

// UpdatePassword sets the WiFi passphrase on both radios and refreshes.
func (c *Client) UpdatePassword(ctx context.Context, id, password string) error {
	if err := c.SetParameterValues(ctx, id, PasswordUpdates(password)); err != nil {
		return fmt.Errorf("set WiFi password: %w", err)
	}
	return c.RefreshWLAN(ctx, id)
}
