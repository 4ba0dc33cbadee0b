package campaign

import "encoding/json"

// Type discriminates campaign payloads ("campaign_type" on the wire).
type Type string

const (
	TypeBanner      Type = "BAN"
	TypeFloater     Type = "FLT"
	TypePIP         Type = "PIP"
	TypeCSAT        Type = "CSAT"
	TypeSurvey      Type = "SUR"
	TypeWidget      Type = "WID"
	TypeBottomSheet Type = "BTS"
	TypeTooltip     Type = "TTP"
	TypeModal       Type = "MOD"
	TypeStories     Type = "STR"
	TypeReel        Type = "REL"
	TypeScratchCard Type = "SCRT"
	TypeUnknown     Type = "UNKNOWN"
)

// ParseType maps a wire discriminator to a Type, falling back to TypeUnknown.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeBanner, TypeFloater, TypePIP, TypeCSAT, TypeSurvey, TypeWidget,
		TypeBottomSheet, TypeTooltip, TypeModal, TypeStories, TypeReel, TypeScratchCard:
		return Type(s)
	}
	return TypeUnknown
}

// Inline reports whether the type renders inside scroll content.
// Inline entries cache indefinitely per screen visit; overlay entries
// carry a time-boxed TTL.
func (t Type) Inline() bool {
	switch t {
	case TypeWidget, TypeStories, TypeReel:
		return true
	}
	return false
}

// Campaign is one server-authored engagement unit, optionally scoped
// to a screen.
type Campaign struct {
	ID             string
	Type           Type
	Screen         string // empty = unscoped
	DisplayTrigger bool
	TriggerEvent   string
	Priority       *int // lower wins; nil = server order
	Details        Details
}

// Details is the type-specific payload of a campaign.
type Details interface{ detailsKind() Type }

type BannerDetails struct {
	Image  string `json:"image"`
	Link   string `json:"link"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type FloaterDetails struct {
	Image    string `json:"image"`
	Link     string `json:"link"`
	Position string `json:"position"`
}

type PIPDetails struct {
	SmallVideo string `json:"small_video"`
	LargeVideo string `json:"large_video"`
	Link       string `json:"link"`
	Position   string `json:"position"`
}

type CSATDetails struct {
	Title       string   `json:"title"`
	Description string   `json:"description_text"`
	Options     []string `json:"feedback_option"`
}

type SurveyDetails struct {
	Name      string   `json:"name"`
	Question  string   `json:"surveyQuestion"`
	Options   []string `json:"surveyOptions"`
	HasOthers bool     `json:"hasOthers"`
}

type WidgetDetails struct {
	Kind   string        `json:"type"` // "full" or "half"
	Images []WidgetImage `json:"widget_images"`
}

type WidgetImage struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	Link  string `json:"link"`
	Order int    `json:"order"`
}

type BottomSheetDetails struct {
	Elements     []json.RawMessage `json:"elements"`
	CornerRadius float64           `json:"cornerRadius"`
}

type TooltipDetails struct {
	Tooltips []TooltipSpec `json:"tooltips"`
}

// TooltipSpec names the on-screen element a tooltip anchors to.
type TooltipSpec struct {
	Target string `json:"target"`
	Order  int    `json:"order"`
	URL    string `json:"url"`
}

type ModalDetails struct {
	Modals []ModalSpec `json:"modals"`
}

type ModalSpec struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Size string `json:"size"`
}

type StoriesDetails struct {
	Groups []StoryGroup `json:"groups"`
}

type StoryGroup struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Thumbnail string       `json:"thumbnail"`
	Ringcolor string       `json:"ringColor"`
	Slides    []StorySlide `json:"slides"`
}

type StorySlide struct {
	ID     string `json:"id"`
	Image  string `json:"image"`
	Video  string `json:"video"`
	Link   string `json:"link"`
	Button string `json:"button_text"`
	Order  int    `json:"order"`
}

type ReelDetails struct {
	Reels []ReelSpec `json:"reels"`
}

type ReelSpec struct {
	ID          string `json:"id"`
	Video       string `json:"video"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
	Likes       int    `json:"likes"`
	Link        string `json:"link"`
}

type ScratchCardDetails struct {
	CoverImage  string `json:"cover_image"`
	RewardImage string `json:"reward_image"`
	Link        string `json:"link"`
}

// UnknownDetails preserves the raw payload of an entry whose
// discriminator or body could not be decoded.
type UnknownDetails struct {
	Raw json.RawMessage
}

func (BannerDetails) detailsKind() Type      { return TypeBanner }
func (FloaterDetails) detailsKind() Type     { return TypeFloater }
func (PIPDetails) detailsKind() Type         { return TypePIP }
func (CSATDetails) detailsKind() Type        { return TypeCSAT }
func (SurveyDetails) detailsKind() Type      { return TypeSurvey }
func (WidgetDetails) detailsKind() Type      { return TypeWidget }
func (BottomSheetDetails) detailsKind() Type { return TypeBottomSheet }
func (TooltipDetails) detailsKind() Type     { return TypeTooltip }
func (ModalDetails) detailsKind() Type       { return TypeModal }
func (StoriesDetails) detailsKind() Type     { return TypeStories }
func (ReelDetails) detailsKind() Type        { return TypeReel }
func (ScratchCardDetails) detailsKind() Type { return TypeScratchCard }
func (UnknownDetails) detailsKind() Type     { return TypeUnknown }
