// Package profile owns the application's user record. A Profile is keyed by
// the identity subject and created on first sign-in with role patient and
// the configured default language. Role and CreatedAt are set once at
// provisioning; Language is the only field with a dedicated update path.
package profile

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/carebridge/portal"
	"github.com/carebridge/portal/errors"
	"github.com/carebridge/portal/logging"
	"github.com/carebridge/portal/plugins/identity"
	"github.com/carebridge/portal/storage"
)

// Constant name for identifying the profile plugin.
const PluginName = "profile"

// No profile exists for the requested id.
var ErrProfileNotFound = errors.NewC("profile: not found", codes.NotFound)

// Profile is the application-owned user record.
type Profile struct {
	// ID is the identity subject that the profile belongs to.
	ID string `json:"id"`

	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PictureURL  string `json:"pictureUrl,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`

	// Role is assigned at provisioning and never changed by this package.
	Role Role `json:"role"`

	// Language is the user's preferred locale code, mutable via
	// UpdateLanguage.
	Language string `json:"language"`

	// CreatedAt is set once when the profile is provisioned.
	CreatedAt time.Time `json:"createdAt"`
}

// From storage.Model.
func (p Profile) PK() string {
	return p.ID
}

// Store wraps a storage.Store with the profile provisioning protocol.
type Store struct {
	store           storage.Store
	defaultLanguage string
	timeFunc        func() time.Time
}

// NewStore returns a profile store backed by the given document store.
func NewStore(s storage.Store, defaultLanguage string) *Store {
	return &Store{
		store:           s,
		defaultLanguage: defaultLanguage,
		timeFunc:        time.Now,
	}
}

// Lookup returns the profile for the given id.
func (s *Store) Lookup(ctx context.Context, id string) (Profile, error) {
	var p Profile
	if err := s.store.Read(id, &p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Profile{}, errors.Mark(ErrProfileNotFound, 0).Append(id)
		}
		return Profile{}, err
	}
	return p, nil
}

// Provision returns the profile for the given identity, creating it if
// absent. An existing record is adopted verbatim; a new record gets role
// patient, the default language, and a creation timestamp. When two
// provisioning attempts race, the loser adopts the record the winner wrote.
func (s *Store) Provision(ctx context.Context, id identity.Identity) (Profile, error) {
	var existing Profile
	err := s.store.Read(id.Subject, &existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Profile{}, err
	}

	fresh := Profile{
		ID:          id.Subject,
		Email:       id.Email,
		DisplayName: id.Name,
		PictureURL:  id.PictureURL,
		PhoneNumber: id.PhoneNumber,
		Role:        RolePatient,
		Language:    s.defaultLanguage,
		CreatedAt:   s.timeFunc(),
	}

	err = s.store.Create(fresh)
	if err == nil {
		logging.Infow(ctx, "profile: provisioned new profile",
			"id", fresh.ID, "role", fresh.Role.String())
		return fresh, nil
	}
	if !errors.Is(err, storage.ErrAlreadyExists) {
		return Profile{}, err
	}

	// Lost a provisioning race, adopt the stored winner.
	logging.Debugw(ctx, "profile: create conflict, adopting stored record", "id", id.Subject)
	var winner Profile
	if err := s.store.Read(id.Subject, &winner); err != nil {
		return Profile{}, err
	}
	return winner, nil
}

// UpdateLanguage writes only the language field of the stored profile, so
// concurrent writers of other fields are not clobbered.
func (s *Store) UpdateLanguage(ctx context.Context, id, code string) error {
	err := s.store.Merge(id, Profile{Language: code})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Mark(ErrProfileNotFound, 0).Append(id)
		}
		return err
	}
	logging.Debugw(ctx, "profile: language updated", "id", id, "language", code)
	return nil
}

// Option allows configuration of the ProfilePlugin.
type Option func(*ProfilePlugin)

// WithDefaultLanguage overrides the configured default language for new
// profiles.
func WithDefaultLanguage(code string) Option {
	return func(p *ProfilePlugin) {
		p.defaultLanguage = code
	}
}

// Plugin returns a new ProfilePlugin.
func Plugin(opts ...Option) *ProfilePlugin {
	p := &ProfilePlugin{
		defaultLanguage: portal.ConfigString("locale.default"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProfilePlugin exposes the profile store to other plugins.
type ProfilePlugin struct {
	*Store
	defaultLanguage string
}

// From portal.Plugin.
func (p *ProfilePlugin) Name() string {
	return PluginName
}

// From portal.DependentPlugin.
func (p *ProfilePlugin) Deps() []string {
	return []string{storage.PluginName}
}

// From portal.InitializablePlugin.
func (p *ProfilePlugin) Init(ctx context.Context, r *portal.Registry) error {
	sp, ok := r.Get(storage.PluginName).(*storage.StoragePlugin)
	if !ok {
		return errors.New("profile: storage plugin not registered")
	}
	if err := sp.InitModel(Profile{}); err != nil {
		return err
	}
	p.Store = NewStore(sp.Store, p.defaultLanguage)
	return nil
}
