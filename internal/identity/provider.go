package identity

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
)

// HostProbe reads device attributes from the host platform. Split out so
// tests can exercise the fallback chain without touching the real host.
type HostProbe interface {
	// MachineID returns the platform-stable machine identifier.
	MachineID(ctx context.Context) (string, error)

	// Info returns platform/OS attributes. May return a partial result.
	Info(ctx context.Context) (HostInfo, error)

	// TotalMemory returns total physical memory in bytes.
	TotalMemory(ctx context.Context) (uint64, error)
}

// HostInfo is the subset of platform attributes the terminal reports.
type HostInfo struct {
	Brand        string
	Manufacturer string
	ModelName    string
	OSName       string
	OSVersion    string
}

// gopsutilProbe reads host attributes via gopsutil.
type gopsutilProbe struct{}

func (gopsutilProbe) MachineID(ctx context.Context) (string, error) {
	return host.HostIDWithContext(ctx)
}

func (gopsutilProbe) Info(ctx context.Context) (HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	return HostInfo{
		Brand:        info.Platform,
		Manufacturer: info.PlatformFamily,
		ModelName:    info.Hostname,
		OSName:       info.OS,
		OSVersion:    info.PlatformVersion,
	}, nil
}

func (gopsutilProbe) TotalMemory(ctx context.Context) (uint64, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Total, nil
}

// ProviderConfig holds configuration for the identity provider.
type ProviderConfig struct {
	// Mode selects the browser or app sentinel family.
	Mode Mode

	// DeviceTypeHint is the raw device class (integer or enum word) from
	// deployment configuration. Normalized before use.
	DeviceTypeHint string

	// PerInstallID replaces the fixed sentinels with a generated UUID
	// persisted through the config store, so installs stay
	// distinguishable server-side. Off by default.
	PerInstallID bool

	// Store persists the per-install identifier. Required only when
	// PerInstallID is set.
	Store *config.Store

	// Probe overrides the platform probe. Nil uses gopsutil.
	Probe HostProbe

	// Logger for provider operations.
	Logger zerolog.Logger
}

// Provider computes the terminal identity exactly once per process.
type Provider struct {
	mode         Mode
	deviceType   DeviceType
	perInstallID bool
	store        *config.Store
	probe        HostProbe
	logger       zerolog.Logger

	once     sync.Once
	identity Identity
}

// NewProvider creates a new identity provider.
func NewProvider(cfg ProviderConfig) *Provider {
	probe := cfg.Probe
	if probe == nil {
		probe = gopsutilProbe{}
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeApp
	}

	return &Provider{
		mode:         mode,
		deviceType:   NormalizeDeviceType(cfg.DeviceTypeHint),
		perInstallID: cfg.PerInstallID,
		store:        cfg.Store,
		probe:        probe,
		logger:       cfg.Logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve computes the identity on first call and returns the cached
// snapshot afterwards. It never fails: every platform error degrades to a
// fallback so the startup flow always has a device id to work with.
func (p *Provider) Resolve(ctx context.Context) Identity {
	p.once.Do(func() {
		p.identity = p.collect(ctx)
		p.logger.Info().
			Str("device_id", p.identity.DeviceID).
			Str("brand", p.identity.Brand).
			Str("model", p.identity.ModelName).
			Str("os", p.identity.OSName).
			Str("device_type", string(p.identity.DeviceType)).
			Msg("device identity resolved")
	})
	return p.identity
}

// Current returns the last-resolved identity without any platform I/O.
// The second return is false until Resolve has run.
func (p *Provider) Current() (Identity, bool) {
	if p.identity.DeviceID == "" {
		return Identity{}, false
	}
	return p.identity, true
}

func (p *Provider) collect(ctx context.Context) Identity {
	id := Identity{DeviceType: p.deviceType}

	if info, err := p.probe.Info(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("host info unavailable")
	} else {
		id.Brand = info.Brand
		id.Manufacturer = info.Manufacturer
		id.ModelName = info.ModelName
		id.OSName = info.OSName
		id.OSVersion = info.OSVersion
	}

	if total, err := p.probe.TotalMemory(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("memory info unavailable")
	} else {
		id.TotalMemory = total
	}

	id.DeviceID = p.resolveDeviceID(ctx)
	return id
}

// resolveDeviceID walks the fallback chain: platform machine id, then the
// optional persisted per-install id, then the fixed sentinel for the
// runtime mode. A machine id lookup that fails (rather than one that is
// simply empty) selects the fallback sentinel family.
func (p *Provider) resolveDeviceID(ctx context.Context) string {
	machineID, err := p.probe.MachineID(ctx)
	if err == nil && machineID != "" {
		return machineID
	}
	if err != nil {
		p.logger.Warn().Err(err).Msg("machine id unavailable, using fallback device id")
	}

	if p.perInstallID && p.store != nil {
		if installID := p.installID(ctx); installID != "" {
			return installID
		}
	}

	failed := err != nil
	switch p.mode {
	case ModeBrowser:
		if failed {
			return BrowserFallbackID
		}
		return BrowserDeviceID
	default:
		if failed {
			return AppFallbackID
		}
		return AppDeviceID
	}
}

// installID returns the persisted per-install identifier, generating and
// persisting one on first use. Returns "" if persistence fails, in which
// case the caller falls back to the fixed sentinels.
func (p *Provider) installID(ctx context.Context) string {
	if existing := p.store.Get().InstallID; existing != "" {
		return existing
	}

	generated := "install_" + uuid.NewString()
	if _, err := p.store.Save(ctx, config.Patch{InstallID: &generated}); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist install id")
		return ""
	}

	p.logger.Info().Str("install_id", generated).Msg("generated per-install device id")
	return generated
}

// FormatMemory renders total memory for the registration payload. The
// backend stores it as a string.
func FormatMemory(total uint64) string {
	if total == 0 {
		return ""
	}
	return strconv.FormatUint(total, 10)
}
