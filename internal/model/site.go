package model

import (
	"errors"
	"time"
)

// User is the authenticated administrator.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Suggestion is an entry of the curated "life suggestions" list.
type Suggestion struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// SocialLink is a platform link shown in the site footer.
type SocialLink struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Notification is an admin inbox entry.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// WebsiteContent holds the editable settings of the public site.
type WebsiteContent struct {
	HeroTitle    string `json:"heroTitle"`
	HeroSubtitle string `json:"heroSubtitle,omitempty"`
	HeroImage    string `json:"heroImage,omitempty"`
	About        string `json:"about,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
	Footer       string `json:"footer,omitempty"`
}

// WebsiteContentInput updates site settings; HeroImageFile switches to multipart.
type WebsiteContentInput struct {
	WebsiteContent
	HeroImageFile string
}

var errEmptyID = errors.New("empty id")

// Validate implementations used by response schema checks.
func (s Session) Validate() error {
	if s.Token == "" {
		return errors.New("session: empty token")
	}
	return nil
}

func (s Suggestion) Validate() error {
	if s.ID == "" {
		return errEmptyID
	}
	return nil
}

func (l SocialLink) Validate() error {
	if l.ID == "" {
		return errEmptyID
	}
	return nil
}

func (n Notification) Validate() error {
	if n.ID == "" {
		return errEmptyID
	}
	return nil
}

func (u User) Validate() error {
	if u.ID == "" {
		return errEmptyID
	}
	return nil
}

func (l LiveSession) Validate() error {
	if l.PodcastID == "" && l.SessionID == "" {
		return errors.New("live session: no identifiers")
	}
	return nil
}
