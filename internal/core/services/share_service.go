package services

import (
	"net/url"

	"golang.org/x/text/language"

	"selfiebooth/pkg/i18n"
)

// ShareLinks are the social targets of a selfie. Instagram has no web
// share endpoint, so only a message is offered.
type ShareLinks struct {
	Text             string `json:"text"`
	Facebook         string `json:"facebook"`
	Twitter          string `json:"twitter"`
	WhatsApp         string `json:"whatsapp"`
	InstagramMessage string `json:"instagramMessage"`
}

type ShareService struct {
	catalog *i18n.Catalog
}

func NewShareService(catalog *i18n.Catalog) *ShareService {
	return &ShareService{catalog: catalog}
}

// Links builds the share URLs for pageURL on behalf of businessName.
func (s *ShareService) Links(tag language.Tag, pageURL, businessName string) ShareLinks {
	text := s.catalog.T(tag, i18n.ShareText, businessName)

	return ShareLinks{
		Text:             text,
		Facebook:         "https://www.facebook.com/sharer/sharer.php?" + url.Values{"u": {pageURL}, "quote": {text}}.Encode(),
		Twitter:          "https://twitter.com/intent/tweet?" + url.Values{"text": {text}, "url": {pageURL}}.Encode(),
		WhatsApp:         "https://wa.me/?" + url.Values{"text": {text + " " + pageURL}}.Encode(),
		InstagramMessage: s.catalog.T(tag, i18n.ShareInstagram),
	}
}
