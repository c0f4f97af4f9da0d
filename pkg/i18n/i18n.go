// Package i18n holds the user facing booth messages. German is the source
// locale; other locales fall back to it key by key.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v2"
)

// Message keys.
const (
	ErrUnexpected              = "error.unexpected"
	TenantNotFound             = "tenant.not_found"
	AccessDenied               = "access.denied"
	AccessMissingPermission    = "access.missing_permission"
	AccessMissingPermissions   = "access.missing_permissions"
	AccessMissingRole          = "access.missing_role"
	AuthLoginRequired          = "auth.login_required"
	AuthInvalidCredentials     = "auth.invalid_credentials"
	AuthAdminInvalidCredential = "auth.admin_invalid_credentials"
	AuthAdminDisabled          = "auth.admin_disabled"
	UsersDuplicate             = "users.duplicate"
	UsersSelfStatus            = "users.self_status"
	SubscriptionExpired        = "subscription.expired"
	SubscriptionChanged        = "subscription.changed"
	PlanMonthly                = "plan.monthly"
	PlanYearly                 = "plan.yearly"
	PlanYearlyNote             = "plan.yearly_note"
	CameraDenied               = "camera.denied"
	CameraNotReady             = "camera.not_ready"
	CameraRestartFailed        = "camera.restart_failed"
	CaptureFailed              = "capture.failed"
	ExportFailed               = "export.failed"
	ExportIOSInstructions      = "export.ios_instructions"
	LocationPending            = "location.pending"
	LocationDenied             = "location.denied"
	LocationUnavailable        = "location.unavailable"
	ShareText                  = "share.text"
	ShareInstagram             = "share.instagram"
	SettingsSaved              = "settings.saved"
	SettingsConflict           = "settings.conflict"
	FramesNameURLRequired      = "frames.name_url_required"
)

// LangParam selects the language explicitly, e.g. ?lang=en.
const LangParam = "lang"

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog resolves message keys for a language.
type Catalog struct {
	builder *catalog.Builder
	matcher language.Matcher
	tags    []language.Tag
}

var defaultCatalog = mustLoad()

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog
}

func mustLoad() *Catalog {
	c, err := Load(localeFS)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads locales/*.yaml from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	b := catalog.NewBuilder(catalog.Fallback(language.German))
	tags := []language.Tag{language.German}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var f localeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		tag, err := language.Parse(f.Locale)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid locale %q: %w", p, f.Locale, err)
		}
		for key, msg := range f.Messages {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", p, key, err)
			}
		}
		if tag != language.German {
			tags = append(tags, tag)
		}
	}

	return &Catalog{builder: b, matcher: language.NewMatcher(tags), tags: tags}, nil
}

// Match picks the best supported language for an Accept-Language value.
func (c *Catalog) Match(accept string) language.Tag {
	_, idx := language.MatchStrings(c.matcher, accept)
	return c.tags[idx]
}

// FromRequest honours ?lang= first, then Accept-Language.
func (c *Catalog) FromRequest(r *http.Request) language.Tag {
	if r == nil {
		return language.German
	}
	if lang := strings.TrimSpace(r.URL.Query().Get(LangParam)); lang != "" {
		return c.Match(lang)
	}
	return c.Match(r.Header.Get("Accept-Language"))
}

// Printer returns a printer bound to the catalog.
func (c *Catalog) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(c.builder))
}

// T formats the message stored under key.
func (c *Catalog) T(tag language.Tag, key string, args ...interface{}) string {
	return c.Printer(tag).Sprintf(key, args...)
}
