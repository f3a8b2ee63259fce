// Package settings reads the operator settings file: a flat JSON object edited
// from the admin panel. Every read goes through an immutable Snapshot so a
// poll cycle or request sees one consistent view of the file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Setting keys
const (
	KeyRXNotifyEnable     = "rx_power_notification_enable"
	KeyRXWarning          = "rx_power_warning"
	KeyRXCritical         = "rx_power_critical"
	KeyRXNotifyInterval   = "rx_power_notification_interval"
	KeyTechnicianGroupID  = "technician_group_id"
	KeyTechnicianNumbers  = "technician_numbers"
	KeyGenieACSURL        = "genieacs_url"
	KeyGenieACSUsername   = "genieacs_username"
	KeyGenieACSPassword   = "genieacs_password"
	KeyMikrotikHost       = "mikrotik_host"
	KeyMikrotikPort       = "mikrotik_port"
	KeyMikrotikUser       = "mikrotik_user"
	KeyMikrotikPassword   = "mikrotik_password"
	KeyAdminUsername      = "admin_username"
	KeyAdminPassword      = "admin_password"
	KeyCompanyHeader      = "company_header"
	KeyFooterInfo         = "footer_info"
	KeyCustomerOTPEnabled = "customer_otp_enabled"
	KeyOTPLength          = "otp_length"
	KeyOTPExpiryMinutes   = "otp_expiry_minutes"
	KeyWebPort            = "web_port"
	KeyBackupFTPHost      = "backup_ftp_host"
	KeyBackupFTPPort      = "backup_ftp_port"
	KeyBackupFTPUser      = "backup_ftp_user"
	KeyBackupFTPPassword  = "backup_ftp_password"
	KeyBackupFTPPath      = "backup_ftp_path"
	KeyBackupRetention    = "backup_retention_days"
)

// Defaults applied when a key is absent from the file.
const (
	DefaultRXWarning        = -25.0
	DefaultRXCritical       = -27.0
	DefaultRXInterval       = 300000
	DefaultGenieACSURL      = "http://localhost:7557"
	DefaultMikrotikPort     = 8728
	DefaultAdminUsername    = "admin"
	DefaultAdminPassword    = "admin"
	DefaultCompanyHeader    = "ALIJAYA BOT MANAGEMENT ISP"
	DefaultFooterInfo       = "Internet Tanpa Batas"
	DefaultOTPLength        = 6
	DefaultOTPExpiryMinutes = 5
	DefaultWebPort          = 3100
	DefaultBackupFTPPort    = 21
	DefaultBackupRetention  = 7
)

var ErrInvalidSetting = errors.New("invalid setting")

// secretKeys are masked by Snapshot.Public.
var secretKeys = map[string]bool{
	KeyGenieACSPassword:  true,
	KeyMikrotikPassword:  true,
	KeyAdminPassword:     true,
	KeyBackupFTPPassword: true,
}

// Provider hands out settings snapshots.
type Provider interface {
	Snapshot() Snapshot
}

// Store is a Provider backed by a JSON file on disk.
type Store struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Snapshot reads the file. A missing or corrupt file yields an empty snapshot
// so callers fall back to their defaults.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("settings unavailable, using defaults")
		return Snapshot{}
	}
	return Snapshot{values: values}
}

// Update merges values into the file and writes it back atomically.
func (s *Store) Update(values map[string]interface{}) error {
	for key := range values {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidSetting)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Msg("overwriting unreadable settings file")
	}
	if current == nil {
		current = make(map[string]interface{})
	}
	for key, value := range values {
		current[key] = value
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	s.logger.Info().Strs("keys", sortedKeys(values)).Msg("settings updated")
	return nil
}

func (s *Store) read() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{})
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("corrupt settings file: %w", err)
	}
	return values, nil
}

// Snapshot is an immutable view of the settings file.
type Snapshot struct {
	values map[string]interface{}
}

// FromMap builds a snapshot from in-memory values.
func FromMap(values map[string]interface{}) Snapshot {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{values: copied}
}

// Static is a Provider that always returns the same snapshot.
type Static Snapshot

func (s Static) Snapshot() Snapshot {
	return Snapshot(s)
}

func (s Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s Snapshot) String(key, def string) string {
	switch v := s.values[key].(type) {
	case string:
		if v == "" {
			return def
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

// Bool accepts JSON booleans and the strings "true"/"false".
func (s Snapshot) Bool(key string, def bool) bool {
	switch v := s.values[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Float accepts JSON numbers and numeric strings.
func (s Snapshot) Float(key string, def float64) float64 {
	switch v := s.values[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s Snapshot) Int(key string, def int) int {
	return int(s.Float(key, float64(def)))
}

// Strings accepts a JSON array or a comma separated string.
func (s Snapshot) Strings(key string) []string {
	var out []string
	switch v := s.values[key].(type) {
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				out = append(out, strings.TrimSpace(str))
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Public returns the settings with secrets masked, for the admin panel.
func (s Snapshot) Public() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		if secretKeys[k] {
			if str, ok := v.(string); ok && str != "" {
				out[k] = "********"
				continue
			}
		}
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
