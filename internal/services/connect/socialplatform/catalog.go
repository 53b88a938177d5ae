package socialplatform

import (
	"fmt"
	"strings"

	"github.com/louisbranch/socialconnect/internal/platform/config"
	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
	"golang.org/x/oauth2"
)

// Endpoint and scope defaults per platform. Instagram business accounts
// authorize through the Facebook dialog.
var defaults = map[Platform]struct {
	endpoint oauth2.Endpoint
	scopes   []string
}{
	Twitter: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://twitter.com/i/oauth2/authorize",
			TokenURL:  "https://api.twitter.com/2/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		scopes: []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
	},
	LinkedIn: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes: []string{"openid", "profile", "w_member_social"},
	},
	Facebook: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://www.facebook.com/v19.0/dialog/oauth",
			TokenURL:  "https://graph.facebook.com/v19.0/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes: []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"},
	},
	Instagram: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://www.facebook.com/v19.0/dialog/oauth",
			TokenURL:  "https://graph.facebook.com/v19.0/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes: []string{"instagram_basic", "instagram_content_publish", "pages_show_list"},
	},
}

// Settings holds the raw client registration values for every platform.
type Settings struct {
	CallbackBaseURL       string `env:"CALLBACK_BASE_URL"`
	TwitterClientID       string `env:"TWITTER_CLIENT_ID"`
	TwitterClientSecret   string `env:"TWITTER_CLIENT_SECRET"`
	LinkedInClientID      string `env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret  string `env:"LINKEDIN_CLIENT_SECRET"`
	FacebookClientID      string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret  string `env:"FACEBOOK_CLIENT_SECRET"`
	InstagramClientID     string `env:"INSTAGRAM_CLIENT_ID"`
	InstagramClientSecret string `env:"INSTAGRAM_CLIENT_SECRET"`
}

// LoadSettingsFromEnv reads SOCIALCONNECT_-prefixed client registrations.
func LoadSettingsFromEnv() (Settings, error) {
	var settings Settings
	if err := config.ParsePrefixedEnv(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Catalog holds the OAuth2 client configuration of each enabled platform.
type Catalog struct {
	configs map[Platform]*oauth2.Config
}

// NewCatalog builds a catalog; platforms without a client id are disabled.
func NewCatalog(settings Settings) *Catalog {
	catalog := &Catalog{configs: make(map[Platform]*oauth2.Config)}
	base := strings.TrimRight(strings.TrimSpace(settings.CallbackBaseURL), "/")
	clients := map[Platform][2]string{
		Twitter:   {settings.TwitterClientID, settings.TwitterClientSecret},
		LinkedIn:  {settings.LinkedInClientID, settings.LinkedInClientSecret},
		Facebook:  {settings.FacebookClientID, settings.FacebookClientSecret},
		Instagram: {settings.InstagramClientID, settings.InstagramClientSecret},
	}
	for _, platform := range all {
		client := clients[platform]
		clientID := strings.TrimSpace(client[0])
		if clientID == "" {
			continue
		}
		def := defaults[platform]
		catalog.configs[platform] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: strings.TrimSpace(client[1]),
			Endpoint:     def.endpoint,
			RedirectURL:  CallbackURL(base, platform),
			Scopes:       append([]string(nil), def.scopes...),
		}
	}
	return catalog
}

// CallbackURL returns the redirect URI registered for platform.
func CallbackURL(base string, platform Platform) string {
	return fmt.Sprintf("%s/oauth/%s/callback", strings.TrimRight(base, "/"), platform)
}

// Enabled returns the platforms that have a client id configured.
func (c *Catalog) Enabled() []Platform {
	if c == nil {
		return nil
	}
	var out []Platform
	for _, platform := range all {
		if _, ok := c.configs[platform]; ok {
			out = append(out, platform)
		}
	}
	return out
}

// Config returns the OAuth2 config for platform.
func (c *Catalog) Config(platform Platform) (*oauth2.Config, error) {
	if c != nil {
		if cfg, ok := c.configs[platform]; ok {
			return cfg, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeConfigPlatformUnavailable, "platform is not configured", map[string]string{"platform": string(platform)})
}

// AuthorizationURL builds the provider consent URL for state. A non-empty
// challenge adds the S256 PKCE parameters.
func (c *Catalog) AuthorizationURL(platform Platform, state, challenge string) (string, error) {
	cfg, err := c.Config(platform)
	if err != nil {
		return "", err
	}
	var opts []oauth2.AuthCodeOption
	if challenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return cfg.AuthCodeURL(state, opts...), nil
}
