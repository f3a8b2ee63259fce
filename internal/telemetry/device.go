package telemetry

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Unknown is shown when a device carries no usable identity value.
const Unknown = "Unknown"

var phoneTagPattern = regexp.MustCompile(`^08\d{8,13}$`)

// ouiVendors maps the OUI prefix of a device id to a vendor name.
var ouiVendors = map[string]string{
	"00259E": "Huawei",
	"F8DFA8": "ZTE",
	"F4B5AA": "ZTE",
	"1C25E1": "Fiberhome",
}

// DeviceInfo is the identity block shown on device pages.
type DeviceInfo struct {
	SerialNumber string `json:"serialNumber"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	Firmware     string `json:"firmware"`
}

// Host is a LAN client reported by the CPE.
type Host struct {
	HostName  string `json:"hostname"`
	IPAddress string `json:"ip"`
	MAC       string `json:"mac"`
	Interface string `json:"iface"`
	Active    bool   `json:"active"`
}

// ID returns the ACS device id.
func ID(tree Tree) string {
	id, _ := tree["_id"].(string)
	return id
}

// Tags returns the device tags. GenieACS stores them under _tags, some
// exports use Tags.
func Tags(tree Tree) []string {
	for _, key := range []string{"_tags", "Tags"} {
		raw, ok := tree[key]
		if !ok {
			continue
		}
		switch list := raw.(type) {
		case []interface{}:
			tags := make([]string, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok {
					tags = append(tags, s)
				}
			}
			return tags
		case []string:
			return list
		}
	}
	return nil
}

// PhoneFromTags returns the first tag that looks like a local mobile number.
func PhoneFromTags(tags []string) string {
	for _, tag := range tags {
		if phoneTagPattern.MatchString(tag) {
			return tag
		}
	}
	return Unknown
}

// Phone extracts the customer phone number from the device tags.
func Phone(tree Tree) string {
	return PhoneFromTags(Tags(tree))
}

// SerialNumber prefers DeviceID.SerialNumber and falls back to the device id.
func SerialNumber(tree Tree) string {
	if v, ok := ResolveRaw(tree, []string{"DeviceID.SerialNumber"}); ok {
		return Format(v)
	}
	if id := ID(tree); id != "" {
		return id
	}
	return Unknown
}

// LastInform returns the time of the last CWMP inform.
func LastInform(tree Tree) (time.Time, bool) {
	raw, ok := tree["_lastInform"].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BasicInfo resolves the identity block, filling gaps from the device id
// (OUI-ProductClass-Serial) and well known firmware and OUI patterns.
func BasicInfo(tree Tree) DeviceInfo {
	serial := ResolveOr(tree, SerialPaths, "")
	model := ResolveOr(tree, ModelPaths, "")
	manufacturer := ResolveOr(tree, ManufacturerPaths, "")
	firmware := ResolveOr(tree, FirmwarePaths, "")

	idParts := strings.Split(ID(tree), "-")
	if serial == "" && len(idParts) >= 3 {
		serial = idParts[2]
	}
	if model == "" && len(idParts) >= 2 {
		model = idParts[1]
	}

	if manufacturer == "" && firmware != "" {
		switch {
		case strings.Contains(firmware, "V3R"), strings.Contains(firmware, "V5R"):
			manufacturer = "ZTE"
		case strings.Contains(firmware, "RP"), strings.Contains(firmware, "AN"):
			manufacturer = "Fiberhome"
		}
	}
	if manufacturer == "" && idParts[0] != "" {
		manufacturer = ouiVendors[idParts[0]]
	}

	return DeviceInfo{
		SerialNumber: orNA(serial),
		Model:        orNA(model),
		Manufacturer: orNA(manufacturer),
		Firmware:     orNA(firmware),
	}
}

// ConnectedHosts lists InternetGatewayDevice.LANDevice.1.Hosts.Host.<n>.
func ConnectedHosts(tree Tree) []Host {
	hostsNode, ok := walk(tree, "InternetGatewayDevice.LANDevice.1.Hosts.Host")
	if !ok {
		return nil
	}
	hosts, ok := asObject(hostsNode)
	if !ok {
		return nil
	}

	indexes := make([]int, 0, len(hosts))
	for key := range hosts {
		if n, err := strconv.Atoi(key); err == nil {
			indexes = append(indexes, n)
		}
	}
	sort.Ints(indexes)

	out := make([]Host, 0, len(indexes))
	for _, n := range indexes {
		entry, ok := asObject(hosts[strconv.Itoa(n)])
		if !ok {
			continue
		}
		host := Tree(entry)
		out = append(out, Host{
			HostName:  ResolveOr(host, []string{"HostName"}, "-"),
			IPAddress: ResolveOr(host, []string{"IPAddress"}, "-"),
			MAC:       ResolveOr(host, []string{"MACAddress"}, "-"),
			Interface: ResolveOr(host, []string{"InterfaceType", "Interface"}, "-"),
			Active:    ResolveOr(host, []string{"Active"}, "false") == "true",
		})
	}
	return out
}

// FormatUptime renders seconds as "Xd Yh Zm", dropping leading zero units.
func FormatUptime(raw string) string {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if ferr != nil {
			return NotAvailable
		}
		seconds = int64(f)
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case days > 0:
		return strconv.FormatInt(days, 10) + "d " + strconv.FormatInt(hours, 10) + "h " + strconv.FormatInt(minutes, 10) + "m"
	case hours > 0:
		return strconv.FormatInt(hours, 10) + "h " + strconv.FormatInt(minutes, 10) + "m"
	}
	return strconv.FormatInt(minutes, 10) + "m"
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
