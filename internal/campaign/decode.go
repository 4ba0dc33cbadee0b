package campaign

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// envelope is the wire shape shared by every campaign type.
type envelope struct {
	ID             string          `json:"id"`
	CampaignType   string          `json:"campaign_type"`
	Screen         string          `json:"screen"`
	DisplayTrigger bool            `json:"display_trigger"`
	TriggerEvent   string          `json:"trigger_event"`
	Priority       *int            `json:"priority"`
	Details        json.RawMessage `json:"details"`
}

// detailDecoders maps a discriminator to its payload decoder. Types
// missing from the table degrade to UnknownDetails.
var detailDecoders = map[Type]func(json.RawMessage) (Details, error){
	TypeBanner:      decodeInto[BannerDetails],
	TypeFloater:     decodeInto[FloaterDetails],
	TypePIP:         decodeInto[PIPDetails],
	TypeCSAT:        decodeInto[CSATDetails],
	TypeSurvey:      decodeInto[SurveyDetails],
	TypeWidget:      decodeInto[WidgetDetails],
	TypeBottomSheet: decodeInto[BottomSheetDetails],
	TypeTooltip:     decodeInto[TooltipDetails],
	TypeModal:       decodeInto[ModalDetails],
	TypeStories:     decodeInto[StoriesDetails],
	TypeReel:        decodeInto[ReelDetails],
	TypeScratchCard: decodeInto[ScratchCardDetails],
}

func decodeInto[T Details](raw json.RawMessage) (Details, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeList decodes a raw campaign array. A single bad entry never
// poisons the batch: an unrecognized or malformed entry is kept with
// Details = UnknownDetails so the rest of the response survives.
func DecodeList(data []byte) ([]Campaign, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]Campaign, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeOne(raw))
	}
	return out, nil
}

func decodeOne(raw json.RawMessage) Campaign {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Msg("undecodable campaign entry")
		return Campaign{Type: TypeUnknown, Details: UnknownDetails{Raw: raw}}
	}

	c := Campaign{
		ID:             env.ID,
		Type:           ParseType(env.CampaignType),
		Screen:         env.Screen,
		DisplayTrigger: env.DisplayTrigger,
		TriggerEvent:   env.TriggerEvent,
		Priority:       env.Priority,
	}

	dec, ok := detailDecoders[c.Type]
	if !ok {
		log.Debug().Str("campaign_id", c.ID).Str("campaign_type", env.CampaignType).Msg("unknown campaign type")
		c.Type = TypeUnknown
		c.Details = UnknownDetails{Raw: env.Details}
		return c
	}

	d, err := dec(env.Details)
	if err != nil {
		// known type, bad body: keep the campaign, downgrade details
		log.Warn().Err(err).Str("campaign_id", c.ID).Str("campaign_type", env.CampaignType).Msg("campaign details decode failed")
		c.Details = UnknownDetails{Raw: env.Details}
		return c
	}
	c.Details = d
	return c
}
