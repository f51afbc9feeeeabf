package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/tracksearch/internal/formatter"
	"github.com/desertthunder/tracksearch/internal/models"
)

var (
	_ list.Item = trackItem{}
)

// trackItem wraps [models.TrackWithFeatures] to implement [list.Item].
type trackItem struct {
	track models.TrackWithFeatures
}

func (i trackItem) FilterValue() string { return i.track.Track.Name + " " + i.track.Track.ArtistNames() }
func (i trackItem) Title() string       { return i.track.Track.Name }
func (i trackItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.track.Track.ArtistNames(), formatter.FormatDuration(i.track.Track.DurationMS))
	if i.track.Track.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Track.Album.Name)
	}
	if i.track.Embedding == nil {
		desc += " • no features"
	}
	return desc
}

func trackItems(tracks []models.TrackWithFeatures) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	return items
}
