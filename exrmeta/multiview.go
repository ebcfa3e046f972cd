package exrmeta

import (
	"strings"

	"github.com/fursund/exrs/exr"
)

// Standard view names for stereo images
const (
	ViewLeft  = "left"
	ViewRight = "right"
)

// SetMultiView lists the views stored in a single layer. The first view
// is the default view, whose channels carry no view prefix.
func SetMultiView(a *exr.Attributes, views []string) {
	put(a, AttrMultiView, exr.AttrTypeStringVector, views)
}

// MultiView returns the views of a single-layer multi-view image, or nil.
func MultiView(a exr.Attributes) []string { return value[[]string](a, AttrMultiView) }

// SetView names the view a layer belongs to.
func SetView(a *exr.Attributes, view string) {
	put(a, AttrView, exr.AttrTypeString, view)
}

func View(a exr.Attributes) string { return value[string](a, AttrView) }

// Views returns the view names of img in first-seen order. Layers tagged
// with a view attribute take precedence over a multiView list on the first
// layer.
func Views(img *exr.Image) []string {
	var views []string
	seen := make(map[string]bool)
	for _, l := range img.Layers {
		if v := View(l.Attributes); v != "" && !seen[v] {
			seen[v] = true
			views = append(views, v)
		}
	}
	if len(views) > 0 || len(img.Layers) == 0 {
		return views
	}
	return MultiView(img.Layers[0].Attributes)
}

// DefaultView returns the first view of img, or "".
func DefaultView(img *exr.Image) string {
	if views := Views(img); len(views) > 0 {
		return views[0]
	}
	return ""
}

// IsStereo reports whether img has both a left and a right view.
func IsStereo(img *exr.Image) bool {
	var left, right bool
	for _, v := range Views(img) {
		left = left || v == ViewLeft
		right = right || v == ViewRight
	}
	return left && right
}

// LayersByView returns the layers whose view attribute equals view.
func LayersByView(img *exr.Image, view string) []*exr.Layer {
	var layers []*exr.Layer
	for _, l := range img.Layers {
		if View(l.Attributes) == view {
			layers = append(layers, l)
		}
	}
	return layers
}

// ViewChannelName is a channel name split into layer, view and base name.
type ViewChannelName struct {
	Layer   string // empty for no layer
	View    string // empty for the default view
	Channel string
}

// ParseViewChannelName splits a "layer.view.channel" name. A component is
// taken as the view only if it is one of views:
//
//	"R"              -> {Channel: "R"}
//	"left.R"         -> {View: "left", Channel: "R"}
//	"diffuse.left.R" -> {Layer: "diffuse", View: "left", Channel: "R"}
//	"diffuse.R"      -> {Layer: "diffuse", Channel: "R"}
func ParseViewChannelName(name string, views []string) ViewChannelName {
	parts := strings.Split(name, ".")
	n := len(parts)
	if n == 1 {
		return ViewChannelName{Channel: name}
	}
	isView := func(s string) bool {
		for _, v := range views {
			if s == v {
				return true
			}
		}
		return false
	}
	channel := parts[n-1]
	if isView(parts[n-2]) {
		return ViewChannelName{
			Layer:   strings.Join(parts[:n-2], "."),
			View:    parts[n-2],
			Channel: channel,
		}
	}
	return ViewChannelName{Layer: strings.Join(parts[:n-1], "."), Channel: channel}
}

// BuildViewChannelName joins the non-empty components with dots.
func BuildViewChannelName(layer, view, channel string) string {
	name := channel
	if view != "" {
		name = view + "." + name
	}
	if layer != "" {
		name = layer + "." + name
	}
	return name
}

// ViewChannels returns the channels belonging to view. Unprefixed channels
// belong to the default view, views[0].
func ViewChannels(channels []exr.Channel, views []string, view string) []exr.Channel {
	defaultView := ""
	if len(views) > 0 {
		defaultView = views[0]
	}
	var out []exr.Channel
	for _, c := range channels {
		parsed := ParseViewChannelName(c.Name, views)
		if parsed.View == view || (parsed.View == "" && view == defaultView) {
			out = append(out, c)
		}
	}
	return out
}

// ViewFilter returns a channel filter for exr.ReadOptions.FilterChannels
// that keeps the channels of view.
func ViewFilter(views []string, view string) func(exr.Channel) bool {
	return func(c exr.Channel) bool {
		return len(ViewChannels([]exr.Channel{c}, views, view)) == 1
	}
}
