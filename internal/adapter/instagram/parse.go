// internal/adapter/instagram/parse.go

package instagram

import (
	"encoding/json"
	"errors"
	"time"

	"discover/internal/domain/search"
)

const maxCaption = 300

type media struct {
	Code    string `json:"code"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
	ImageVersions2 struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Location *struct {
		Name string   `json:"name"`
		Lat  *float64 `json:"lat"`
		Lng  *float64 `json:"lng"`
	} `json:"location"`
	LikeCount int   `json:"like_count"`
	TakenAt   int64 `json:"taken_at"`
}

type mediaItem struct {
	Media json.RawMessage `json:"media"`
}

type sections struct {
	Sections []struct {
		LayoutContent struct {
			FillItems    []mediaItem `json:"fill_items"`
			Medias       []mediaItem `json:"medias"`
			OneByTwoItem *mediaItem  `json:"one_by_two_item"`
		} `json:"layout_content"`
	} `json:"sections"`
}

// tagResponse accepts both the wrapped and the bare hashtag payload
type tagResponse struct {
	Data *struct {
		Top *sections `json:"top"`
	} `json:"data"`
	Top *sections `json:"top"`
}

// mediaItems flattens every media object found in the top sections
func (r tagResponse) mediaItems() []json.RawMessage {
	top := r.Top
	if r.Data != nil && r.Data.Top != nil {
		top = r.Data.Top
	}
	if top == nil {
		return nil
	}

	var items []json.RawMessage
	for _, sec := range top.Sections {
		lc := sec.LayoutContent
		for _, list := range [][]mediaItem{lc.FillItems, lc.Medias} {
			for _, item := range list {
				if len(item.Media) > 0 {
					items = append(items, item.Media)
				}
			}
		}
		if lc.OneByTwoItem != nil && len(lc.OneByTwoItem.Media) > 0 {
			items = append(items, lc.OneByTwoItem.Media)
		}
	}
	return items
}

// parsePost maps one media object to a post. Media without a shortcode is rejected.
func parsePost(raw json.RawMessage) (search.SocialPost, error) {
	var m media
	if err := json.Unmarshal(raw, &m); err != nil {
		return search.SocialPost{}, err
	}
	if m.Code == "" {
		return search.SocialPost{}, errors.New("media missing code")
	}

	post := search.SocialPost{
		Shortcode: m.Code,
		URL:       "https://www.instagram.com/p/" + m.Code + "/",
		Likes:     m.LikeCount,
		Username:  m.User.Username,
	}
	if m.Caption != nil {
		post.Caption = truncate(m.Caption.Text, maxCaption)
	}
	if len(m.ImageVersions2.Candidates) > 0 {
		post.ImageURL = m.ImageVersions2.Candidates[0].URL
	}
	if m.TakenAt > 0 {
		post.Timestamp = time.Unix(m.TakenAt, 0).UTC().Format(time.RFC3339)
	}
	if m.Location != nil {
		if m.Location.Name != "" {
			name := m.Location.Name
			post.LocationName = &name
		}
		post.Lat = nonZero(m.Location.Lat)
		post.Lon = nonZero(m.Location.Lng)
	}

	return post, nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func nonZero(f *float64) *float64 {
	if f == nil || *f == 0 {
		return nil
	}
	return f
}
