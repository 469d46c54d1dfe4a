package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"rostercal/internal/recipients"
	"rostercal/internal/sheet"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Transport selects the invite sink.
type Transport string

const (
	TransportCalendar Transport = "calendar"
	TransportMessage  Transport = "message"
	TransportCalDAV   Transport = "caldav"
)

// UnmarshalText accepts the transport names case-insensitively.
func (t *Transport) UnmarshalText(b []byte) error {
	switch v := Transport(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case TransportCalendar, TransportMessage, TransportCalDAV:
		*t = v
		return nil
	case "calendarapi", "api":
		*t = TransportCalendar
		return nil
	case "email", "mail", "smtp":
		*t = TransportMessage
		return nil
	default:
		return fmt.Errorf("unknown transport %q", string(b))
	}
}

// GoogleConfig holds the Google Sheets and Calendar settings.
type GoogleConfig struct {
	ServiceAccount string `env:"SERVICE_ACCOUNT"`
	ClientID       string `env:"CLIENT_ID"`
	ClientSecret   string `env:"CLIENT_SECRET"`
	Account        string `env:"ACCOUNT" envDefault:"default"`
	SheetID        string `env:"SHEET_ID"`
	SheetRange     string `env:"SHEET_RANGE" envDefault:"A:Z"`
	CalendarID     string `env:"CALENDAR_ID"`
}

// SMTPConfig holds the mail transport settings.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// CalDAVConfig holds the CalDAV transport settings.
type CalDAVConfig struct {
	Endpoint string `env:"ENDPOINT" envDefault:"https://caldav.icloud.com/"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Calendar string `env:"CALENDAR"`
}

// Config is read once at startup and not changed afterwards.
type Config struct {
	LogLevel  string    `env:"LOG_LEVEL" envDefault:"info"`
	Transport Transport `env:"TRANSPORT" envDefault:"calendar"`

	EmailMap       string   `env:"EMAIL_MAP" envDefault:"{}"`
	RecipientsFile string   `env:"RECIPIENTS_FILE"`
	OwnerEmail     string   `env:"USER_EMAIL"`
	TimeZone       string   `env:"TIMEZONE" envDefault:"Europe/Amsterdam"`
	TitlePrefix    string   `env:"TITLE_PREFIX" envDefault:"Oppas"`
	DateLayouts    []string `env:"DATE_LAYOUTS" envSeparator:";"`

	RosterCSV      string `env:"ROSTER_CSV"`
	WeekColumn     string `env:"COLUMN_WEEK" envDefault:"Week nummer"`
	DateColumn     string `env:"COLUMN_DATE" envDefault:"Datum"`
	AssigneeColumn string `env:"COLUMN_ASSIGNEE" envDefault:"Oppas"`
	CommentColumn  string `env:"COLUMN_COMMENT" envDefault:"Comments"`

	StateFile string `env:"STATE_FILE"`

	Google GoogleConfig `envPrefix:"GOOGLE_"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_"`
	CalDAV CalDAVConfig `envPrefix:"CALDAV_"`

	table recipients.Table
}

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses the given environment, or the process environment when
// environ is nil, and validates the result.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and builds the recipient table.
func (c *Config) Validate() error {
	var errs []error

	table, err := c.loadTable()
	if err != nil {
		errs = append(errs, err)
	}
	c.table = table

	if c.OwnerEmail != "" {
		if err := checkAddress(c.OwnerEmail); err != nil {
			errs = append(errs, fmt.Errorf("USER_EMAIL: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if c.RosterCSV == "" && c.Google.SheetID == "" {
		errs = append(errs, errors.New("no roster source: set GOOGLE_SHEET_ID or ROSTER_CSV"))
	}

	switch c.Transport {
	case TransportCalendar:
		if c.Google.CalendarID == "" {
			errs = append(errs, errors.New("GOOGLE_CALENDAR_ID must be set for the calendar transport"))
		}
	case TransportMessage:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM must be set for the message transport"))
		} else if err := checkAddress(c.SMTP.From); err != nil {
			errs = append(errs, fmt.Errorf("SMTP_FROM: %w", err))
		}
	case TransportCalDAV:
		if c.CalDAV.Username == "" || c.CalDAV.Password == "" || c.CalDAV.Calendar == "" {
			errs = append(errs, errors.New("CALDAV_USERNAME, CALDAV_PASSWORD and CALDAV_CALENDAR must be set for the caldav transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}

	if c.NeedsGoogle() && c.Google.ServiceAccount == "" && c.Google.ClientID == "" {
		if _, err := os.Stat("credentials.json"); err != nil {
			errs = append(errs, errors.New("google credentials missing: set GOOGLE_SERVICE_ACCOUNT, GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or provide credentials.json"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsGoogle reports whether any configured component talks to Google.
func (c *Config) NeedsGoogle() bool {
	return c.Transport == TransportCalendar || c.RosterCSV == ""
}

// Recipients returns the merged name to address table.
func (c *Config) Recipients() recipients.Table {
	return c.table
}

// Columns returns the roster header names.
func (c *Config) Columns() sheet.Columns {
	return sheet.Columns{
		Week:     c.WeekColumn,
		Date:     c.DateColumn,
		Assignee: c.AssigneeColumn,
		Comment:  c.CommentColumn,
	}
}

// loadTable merges EMAIL_MAP with the recipients file; file entries win.
func (c *Config) loadTable() (recipients.Table, error) {
	table := recipients.Table{}

	raw := strings.TrimSpace(c.EmailMap)
	if raw != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("EMAIL_MAP must be a JSON object: %w", err)
		}
		for name, value := range m {
			table[strings.TrimSpace(name)] = splitAddresses(value)
		}
	}

	if c.RecipientsFile != "" {
		fromFile, err := readRecipientsFile(c.RecipientsFile)
		if err != nil {
			return nil, err
		}
		for name, addrs := range fromFile {
			table[name] = addrs
		}
	}

	for name, addrs := range table {
		for _, a := range addrs {
			if err := checkAddress(a); err != nil {
				return nil, fmt.Errorf("address for %q: %w", name, err)
			}
		}
	}
	return table, nil
}

// addressList accepts either a single address or a YAML sequence.
type addressList []string

func (a *addressList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = splitAddresses(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = nil
		for _, v := range list {
			*a = append(*a, splitAddresses(v)...)
		}
		return nil
	default:
		return fmt.Errorf("line %d: expected an address or a list of addresses", node.Line)
	}
}

func readRecipientsFile(path string) (recipients.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients file: %w", err)
	}
	var m map[string]addressList
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse recipients file %s: %w", path, err)
	}
	table := make(recipients.Table, len(m))
	for name, addrs := range m {
		table[strings.TrimSpace(name)] = addrs
	}
	return table, nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func checkAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if parsed.Name != "" || parsed.Address != addr {
		return fmt.Errorf("invalid address %q: use a bare address", addr)
	}
	return nil
}
