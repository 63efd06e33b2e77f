// Package locale keeps the UI language in sync with the user's stored
// preference. Session resolution adopts the profile's language; a user
// selection switches the UI immediately and then persists through the
// session, so the person never waits on a store write to see their choice.
package locale

import (
	"context"
	"sync"

	"golang.org/x/text/language"
	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/logging"
	"github.com/carebridge/portal/plugins/session"
)

// Constant name for identifying the locale plugin.
const PluginName = "locale"

// The requested locale matched none of the supported languages.
var ErrUnsupportedLocale = errors.NewC("locale: unsupported language", codes.InvalidArgument)

// Option allows configuration of the LocalePlugin.
type Option func(*LocalePlugin)

// WithSupported overrides the configured set of supported locale codes. The
// first code is the fallback.
func WithSupported(codes ...string) Option {
	return func(p *LocalePlugin) {
		p.codes = codes
	}
}

// Plugin returns a new LocalePlugin configured from locale.supported and
// locale.default.
func Plugin(opts ...Option) *LocalePlugin {
	p := &LocalePlugin{
		codes:       portal.ConfigStrings("locale.supported"),
		defaultCode: portal.ConfigString("locale.default"),
		subscribers: map[int]func(string){},
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.codes) == 0 {
		p.codes = []string{"en"}
	}
	if p.defaultCode == "" {
		p.defaultCode = p.codes[0]
	}

	p.tags = make([]language.Tag, len(p.codes))
	for i, c := range p.codes {
		p.tags[i] = language.Make(c)
	}
	p.matcher = language.NewMatcher(p.tags)
	p.active = p.defaultCode
	return p
}

// LocalePlugin holds the active locale and mirrors profile language changes.
type LocalePlugin struct {
	codes       []string
	tags        []language.Tag
	matcher     language.Matcher
	defaultCode string

	session *session.SessionPlugin

	mu          sync.Mutex
	active      string
	subscribers map[int]func(string)
	nextSub     int
}

// From portal.Plugin.
func (p *LocalePlugin) Name() string {
	return PluginName
}

// From portal.DependentPlugin.
func (p *LocalePlugin) Deps() []string {
	return []string{session.PluginName}
}

// From portal.InitializablePlugin. Subscribes to session transitions so a
// resolved profile's language is adopted.
func (p *LocalePlugin) Init(ctx context.Context, r *portal.Registry) error {
	sp, ok := r.Get(session.PluginName).(*session.SessionPlugin)
	if !ok {
		return errors.New("locale: session plugin not registered")
	}
	p.session = sp
	sp.Subscribe(func(st session.State) {
		p.onSessionState(ctx, st)
	})
	return nil
}

// Supported returns the configured locale codes.
func (p *LocalePlugin) Supported() []string {
	return p.codes
}

// Active returns the locale code currently in effect.
func (p *LocalePlugin) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Subscribe registers a callback invoked whenever the active locale changes.
// The returned function removes the callback.
func (p *LocalePlugin) Subscribe(fn func(code string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

// Match resolves an arbitrary language code to the nearest supported locale,
// so "en-US" lands on "en". Unmatchable codes error.
func (p *LocalePlugin) Match(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", errors.Mark(ErrUnsupportedLocale, 0).Append(code)
	}
	_, idx, conf := p.matcher.Match(tag)
	if conf == language.No {
		return "", errors.Mark(ErrUnsupportedLocale, 0).Append(code)
	}
	return p.codes[idx], nil
}

// Select applies the user's language choice. The switch is immediate; the
// store write happens afterwards through the session and is skipped while
// signed out. A failed write is logged and never rolled back, matching the
// optimistic switch the user already saw.
func (p *LocalePlugin) Select(ctx context.Context, code string) error {
	matched, err := p.Match(code)
	if err != nil {
		return err
	}

	p.setActive(matched)

	if err := p.session.UpdatePreferredLanguage(ctx, matched); err != nil {
		logging.Warnw(ctx, "locale: failed to persist language preference",
			"language", matched, "error", err)
	}
	return nil
}

// onSessionState adopts the resolved profile's language.
func (p *LocalePlugin) onSessionState(ctx context.Context, st session.State) {
	if st.Loading() || st.Profile == nil || st.Profile.Language == "" {
		return
	}
	matched, err := p.Match(st.Profile.Language)
	if err != nil {
		logging.Warnw(ctx, "locale: profile carries unsupported language",
			"language", st.Profile.Language)
		return
	}
	p.setActive(matched)
}

func (p *LocalePlugin) setActive(code string) {
	p.mu.Lock()
	if p.active == code {
		p.mu.Unlock()
		return
	}
	p.active = code
	subs := make([]func(string), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(code)
	}
}
