package scraper

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postulo/postulo/scraper/internal/browser"
)

// Config is the top-level engine configuration.
type Config struct {
	Browser  BrowserConfig `yaml:"browser"`
	Pacing   PacingConfig  `yaml:"pacing"`
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// MaxOffers caps offers processed per run. Default: 10.
	MaxOffers int `yaml:"max_offers"`

	// DebugDir receives diagnostic captures on fatal failures. Default: debug.
	DebugDir string `yaml:"debug_dir"`

	LoginURL       string `yaml:"login_url"`
	SearchURL      string `yaml:"search_url"`
	OfferURLFormat string `yaml:"offer_url_format"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote     string        `yaml:"remote"`
	NoSandbox  bool          `yaml:"no_sandbox"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// PacingConfig inserts human-cadence pauses between interactions.
type PacingConfig struct {
	KeystrokeMin time.Duration `yaml:"keystroke_min"`
	KeystrokeMax time.Duration `yaml:"keystroke_max"`
	StepMin      time.Duration `yaml:"step_min"`
	StepMax      time.Duration `yaml:"step_max"`
}

// TimeoutConfig bounds element resolution waits.
type TimeoutConfig struct {
	// Element is the default per-strategy resolver timeout.
	Element time.Duration `yaml:"element"`
	// Suggestion bounds the wait for an autocomplete dropdown.
	Suggestion time.Duration `yaml:"suggestion"`
	// Dropdown bounds the external-redirect menu check.
	Dropdown time.Duration `yaml:"dropdown"`
	// AlreadyApplied bounds the late already-applied banner check on the
	// submission page.
	AlreadyApplied time.Duration `yaml:"already_applied"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Pacing.KeystrokeMin <= 0 {
		c.Pacing.KeystrokeMin = 50 * time.Millisecond
	}
	if c.Pacing.KeystrokeMax <= c.Pacing.KeystrokeMin {
		c.Pacing.KeystrokeMax = 200 * time.Millisecond
	}
	if c.Pacing.StepMin <= 0 {
		c.Pacing.StepMin = time.Second
	}
	if c.Pacing.StepMax <= c.Pacing.StepMin {
		c.Pacing.StepMax = 3 * time.Second
	}
	if c.Timeouts.Element <= 0 {
		c.Timeouts.Element = 10 * time.Second
	}
	if c.Timeouts.Suggestion <= 0 {
		c.Timeouts.Suggestion = 3 * time.Second
	}
	if c.Timeouts.Dropdown <= 0 {
		c.Timeouts.Dropdown = 2 * time.Second
	}
	if c.Timeouts.AlreadyApplied <= 0 {
		c.Timeouts.AlreadyApplied = 5 * time.Second
	}
	if c.MaxOffers <= 0 {
		c.MaxOffers = 10
	}
	if c.DebugDir == "" {
		c.DebugDir = "debug"
	}
	if c.LoginURL == "" {
		c.LoginURL = defaultLoginURL
	}
	if c.SearchURL == "" {
		c.SearchURL = "https://candidat.francetravail.fr/rechercheoffre/landing"
	}
	if c.OfferURLFormat == "" {
		c.OfferURLFormat = "https://candidat.francetravail.fr/offres/recherche/detail/%s"
	}
}

func (c *Config) browserConfig(headless bool) browser.Config {
	return browser.Config{
		Headless:   headless,
		RemoteURL:  c.Browser.Remote,
		NavTimeout: c.Browser.NavTimeout,
		NoSandbox:  c.Browser.NoSandbox,
	}
}

// The portal's login entry carries the OAuth round-trip parameters in the
// goto query; the redirect_uri is what lands the session in espacepersonnel.
const defaultLoginURL = "https://authentification-candidat.francetravail.fr/connexion/XUI/?realm=/individu&goto=https://authentification-candidat.francetravail.fr/connexion/oauth2/realms/root/realms/individu/authorize?realm%3D/individu%26response_type%3Did_token%2520token%2520scope%3Dactu%2520actuStatut%2520application_USG_PN073-tdbcandidat_6408B42F17FC872440D4FF01BA6BAB16999CD903772C528808D1E6FA2B585CF2%2520compteUsager%2520contexteAuthentification%2520coordonnees%2520courrier%2520email%2520etatcivil%2520idIdentiteExterne%2520idRci%2520individu%2520logW%2520messagerieintegree%2520navigation%2520nomenclature%2520notifications%2520openid%2520pilote%2520pole_emploi%2520prdvl%2520profile%2520reclamation%2520suggestions%2520mesrdvs%26client_id%3DUSG_PN073-tdbcandidat_6408B42F17FC872440D4FF01BA6BAB16999CD903772C528808D1E6FA2B585CF2%26state%3Dkk6ywfeBSqE6u5Mu%26nonce%3DIjrKFxkMGDHZS0Pb%26redirect_uri%3Dhttps://candidat.francetravail.fr/espacepersonnel/#login/"
