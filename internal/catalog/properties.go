package catalog

import (
	"calc-server/internal/model"
	"fmt"
	"sort"
	"strings"
)

// Recognized property codes. Anything else lands in the unknown slot.
const (
	PropType              = "TYPE"
	PropStages            = "CALC_STAGES"
	PropDetails           = "DETAILS"
	PropSettings          = "CALC_SETTINGS"
	PropOperationVariant  = "OPERATION_VARIANT"
	PropOperationQuantity = "OPERATION_QUANTITY"
	PropEquipment         = "EQUIPMENT"
	PropMaterialVariant   = "MATERIAL_VARIANT"
	PropMaterialQuantity  = "MATERIAL_QUANTITY"
	PropCustomFields      = "CUSTOM_FIELDS_VALUE"
	PropOptionsOperation  = "OPTIONS_OPERATION"
	PropOptionsMaterial   = "OPTIONS_MATERIAL"
	PropLogicJSON         = "LOGIC_JSON"
	PropPrevStage         = "PREV_STAGE"
	PropNextStage         = "NEXT_STAGE"
)

type propKind int

const (
	kindIDs propKind = iota
	kindNumber
	kindText
	kindList
	kindPairs
)

var recognized = map[string]propKind{
	PropType:              kindList,
	PropStages:            kindIDs,
	PropDetails:           kindIDs,
	PropSettings:          kindIDs,
	PropOperationVariant:  kindIDs,
	PropOperationQuantity: kindNumber,
	PropEquipment:         kindIDs,
	PropMaterialVariant:   kindIDs,
	PropMaterialQuantity:  kindNumber,
	PropCustomFields:      kindPairs,
	PropOptionsOperation:  kindText,
	PropOptionsMaterial:   kindText,
	PropLogicJSON:         kindText,
	PropPrevStage:         kindIDs,
	PropNextStage:         kindIDs,
}

// Properties is the typed lookup table of an element's property bag.
type Properties struct {
	ids     map[string][]int
	numbers map[string]float64
	texts   map[string]string
	xmlIDs  map[string]string
	custom  map[string]string
	unknown map[string]model.PropertyValue
}

func decodeProperties(sectionCode string, el *model.Element) (Properties, error) {
	p := Properties{
		ids:     make(map[string][]int),
		numbers: make(map[string]float64),
		texts:   make(map[string]string),
		xmlIDs:  make(map[string]string),
	}
	fail := func(code, reason string) error {
		return &Error{Section: sectionCode, ElementID: el.ID, Property: code, Reason: reason}
	}

	codes := make([]string, 0, len(el.Properties))
	for code := range el.Properties {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		pv := el.Properties[code]
		kind, ok := recognized[code]
		if !ok {
			if p.unknown == nil {
				p.unknown = make(map[string]model.PropertyValue)
			}
			p.unknown[code] = pv
			continue
		}

		switch kind {
		case kindIDs:
			var ids []int
			for _, v := range pv.Values {
				id, ok, err := parseID(v)
				if err != nil {
					return Properties{}, fail(code, fmt.Sprintf("invalid element id %q", v))
				}
				if ok {
					ids = append(ids, id)
				}
			}
			if len(ids) > 0 {
				p.ids[code] = ids
			}
		case kindNumber:
			n, ok, err := ParseNumber(pv.First())
			if err != nil {
				return Properties{}, fail(code, fmt.Sprintf("invalid number %q", pv.First()))
			}
			if ok {
				p.numbers[code] = n
			}
		case kindText:
			text := pv.Text
			if text == "" {
				text = pv.First()
			}
			if strings.TrimSpace(text) != "" {
				p.texts[code] = text
			}
		case kindList:
			if pv.XMLID != "" {
				p.xmlIDs[code] = pv.XMLID
			}
		case kindPairs:
			for i, name := range pv.Values {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if p.custom == nil {
					p.custom = make(map[string]string)
				}
				value := ""
				if i < len(pv.Descriptions) {
					value = strings.TrimSpace(pv.Descriptions[i])
				}
				p.custom[name] = value
			}
		}
	}

	if sectionCode == SectionDetails {
		switch t := p.xmlIDs[PropType]; t {
		case "":
			p.xmlIDs[PropType] = TypeDetail
		case TypeDetail, TypeBinding:
		default:
			return Properties{}, fail(PropType, fmt.Sprintf("unknown detail type %q", t))
		}
	}
	return p, nil
}

// IDs returns the element ids of a multi-value reference property.
func (p Properties) IDs(code string) []int { return p.ids[code] }

// ID returns the first id of a reference property.
func (p Properties) ID(code string) (int, bool) {
	ids := p.ids[code]
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Number returns a numeric property.
func (p Properties) Number(code string) (float64, bool) {
	v, ok := p.numbers[code]
	return v, ok
}

// Text returns a text (usually JSON) property.
func (p Properties) Text(code string) string { return p.texts[code] }

// XMLID returns the enum xml id of a list property.
func (p Properties) XMLID(code string) string { return p.xmlIDs[code] }

// CustomFields returns a copy of CUSTOM_FIELDS_VALUE as name -> value.
func (p Properties) CustomFields() map[string]string {
	out := make(map[string]string, len(p.custom))
	for k, v := range p.custom {
		out[k] = v
	}
	return out
}

// Unknown returns a property outside the recognized set.
func (p Properties) Unknown(code string) (model.PropertyValue, bool) {
	v, ok := p.unknown[code]
	return v, ok
}
