// Package backup copies the operator settings file to an FTP server and
// prunes copies older than the retention period.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alijaya/ispportal/internal/models"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
)

const (
	filePrefix = "settings-"
	fileSuffix = ".json"

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

var ErrNotConfigured = errors.New("backup FTP server not configured")

// Conn is the part of *ftp.ServerConn used for uploads.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	List(path string) ([]*ftp.Entry, error)
	Delete(path string) error
	Quit() error
}

// Dialer opens an FTP control connection.
type Dialer func(addr string) (Conn, error)

func dialFTP(addr string) (Conn, error) {
	return ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
}

// Target is the FTP destination read from settings.
type Target struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Path      string
	Retention int
}

func TargetFromSettings(snap settings.Snapshot) Target {
	return Target{
		Host:      snap.String(settings.KeyBackupFTPHost, ""),
		Port:      snap.Int(settings.KeyBackupFTPPort, settings.DefaultBackupFTPPort),
		Username:  snap.String(settings.KeyBackupFTPUser, "anonymous"),
		Password:  snap.String(settings.KeyBackupFTPPassword, ""),
		Path:      snap.String(settings.KeyBackupFTPPath, "/"),
		Retention: snap.Int(settings.KeyBackupRetention, settings.DefaultBackupRetention),
	}
}

func (t Target) addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Result describes one finished upload.
type Result struct {
	File    string    `json:"file"`
	Size    int       `json:"size"`
	Host    string    `json:"host"`
	At      time.Time `json:"at"`
	Deleted []string  `json:"deleted,omitempty"`
}

// History keeps a record of backup runs.
type History interface {
	RecordBackup(ctx context.Context, entry models.BackupLog)
}

// Service uploads the settings file of a Store.
type Service struct {
	store   *settings.Store
	history History
	dial    Dialer
	now     func() time.Time
	logger  zerolog.Logger
}

// New builds a Service. history may be nil.
func New(store *settings.Store, history History, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		history: history,
		dial:    dialFTP,
		now:     time.Now,
		logger:  logger,
	}
}

// Run performs a manual backup.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	return s.run(ctx, TriggerManual)
}

// run records every attempt except the unconfigured case.
func (s *Service) run(ctx context.Context, trigger string) (*Result, error) {
	started := s.now()
	result, err := s.upload(ctx)
	if errors.Is(err, ErrNotConfigured) || s.history == nil {
		return result, err
	}

	entry := models.BackupLog{
		Trigger:     trigger,
		Status:      "success",
		StartedAt:   started.UTC(),
		CompletedAt: s.now().UTC(),
	}
	if result != nil {
		entry.Filename = result.File
		entry.FileSize = result.Size
		entry.Host = result.Host
		entry.Pruned = len(result.Deleted)
	}
	if err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	}
	s.history.RecordBackup(ctx, entry)
	return result, err
}

// upload stores a timestamped copy of the settings file, then removes remote
// copies older than the retention period. A failed cleanup is logged only.
func (s *Service) upload(ctx context.Context) (*Result, error) {
	target := TargetFromSettings(s.store.Snapshot())
	if target.Host == "" {
		return nil, ErrNotConfigured
	}

	data, err := os.ReadFile(s.store.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := s.dial(target.addr())
	if err != nil {
		return nil, fmt.Errorf("FTP connection failed: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(target.Username, target.Password); err != nil {
		return nil, fmt.Errorf("FTP login failed: %w", err)
	}
	if target.Path != "" && target.Path != "/" {
		if err := conn.ChangeDir(target.Path); err != nil {
			// the directory may not exist yet
			_ = conn.MakeDir(target.Path)
			if err := conn.ChangeDir(target.Path); err != nil {
				return nil, fmt.Errorf("FTP directory change failed: %w", err)
			}
		}
	}

	now := s.now()
	name := filePrefix + now.UTC().Format("20060102-150405") + fileSuffix
	if err := conn.Stor(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("FTP upload failed: %w", err)
	}
	s.logger.Info().Str("file", name).Str("host", target.Host).Int("size", len(data)).Msg("settings backup uploaded")

	result := &Result{File: name, Size: len(data), Host: target.Host, At: now}
	if target.Retention > 0 {
		result.Deleted = s.prune(conn, now.AddDate(0, 0, -target.Retention))
	}
	return result, nil
}

func (s *Service) prune(conn Conn, cutoff time.Time) []string {
	entries, err := conn.List("")
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list remote backups")
		return nil
	}

	var deleted []string
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !entry.Time.Before(cutoff) {
			continue
		}
		if !strings.HasPrefix(entry.Name, filePrefix) || !strings.HasSuffix(entry.Name, fileSuffix) {
			continue
		}
		if err := conn.Delete(entry.Name); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name).Msg("failed to delete old backup")
			continue
		}
		deleted = append(deleted, entry.Name)
	}
	if len(deleted) > 0 {
		s.logger.Info().Strs("files", deleted).Msg("old settings backups deleted")
	}
	return deleted
}

// Start runs a backup every interval until ctx is done. Ticks are skipped
// quietly while no FTP server is configured.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, err := s.run(ctx, TriggerScheduled)
				switch {
				case errors.Is(err, ErrNotConfigured):
					s.logger.Debug().Msg("scheduled backup skipped, FTP not configured")
				case err != nil:
					s.logger.Error().Err(err).Msg("scheduled settings backup failed")
				}
			}
		}
	}()
}
