package planner

import (
	"github.com/fpang/minipaint/internal/inventory"
	"github.com/fpang/minipaint/internal/plan"
	"google.golang.org/genai"
)

// Response schemas for the hosted backend's structured output. Local
// backends ignore them and rely on the inline example in the compact
// prompts.

func str() *genai.Schema     { return &genai.Schema{Type: genai.TypeString} }
func num() *genai.Schema     { return &genai.Schema{Type: genai.TypeNumber} }
func integer() *genai.Schema { return &genai.Schema{Type: genai.TypeInteger} }

func strEnum(values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values}
}

func arrayOf(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func nullable(s *genai.Schema) *genai.Schema {
	s.Nullable = genai.Ptr(true)
	return s
}

func rectSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"x": num(), "y": num(), "width": num(), "height": num(),
	}, "x", "y", "width", "height")
}

func paintRefSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"name": str(), "brand": str(), "hex": str(),
	}, "name", "brand", "hex")
}

func mixSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"targetColor": str(),
		"targetHex":   str(),
		"components": arrayOf(object(map[string]*genai.Schema{
			"paint": str(), "brand": str(), "hex": str(), "ratio": integer(),
		}, "paint", "ratio")),
		"instructions": str(),
	}, "targetColor", "components")
}

// colorsSchema describes the colour-identification phase.
func colorsSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"colors": arrayOf(object(map[string]*genai.Schema{
			"colorName":    str(),
			"hex":          str(),
			"location":     str(),
			"matchedPaint": nullable(paintRefSchema()),
			"needsMixing":  {Type: genai.TypeBoolean},
			"mixRecipe":    nullable(mixSchema()),
		}, "colorName", "hex", "location", "needsMixing")),
	}, "colors")
}

// partsSchema describes part segmentation.
func partsSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"parts": arrayOf(object(map[string]*genai.Schema{
			"name":        str(),
			"description": str(),
			"colors":      arrayOf(str()),
			"regions":     arrayOf(rectSchema()),
		}, "name", "regions")),
	}, "parts")
}

// suggestionsSchema describes part suggestions for the region editor.
func suggestionsSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"parts": arrayOf(object(map[string]*genai.Schema{
			"name":        str(),
			"description": str(),
			"region":      rectSchema(),
		}, "name", "region")),
	}, "parts")
}

// stepsSchema describes step generation.
func stepsSchema() *genai.Schema {
	paint := paintRefSchema()
	paint.Properties["purpose"] = strEnum(plan.PurposeBase, plan.PurposeShadow, plan.PurposeHighlight, plan.PurposeWash, plan.PurposeGlaze)

	return object(map[string]*genai.Schema{
		"steps": arrayOf(object(map[string]*genai.Schema{
			"stepNumber":      integer(),
			"partName":        str(),
			"partDescription": str(),
			"baseColor":       str(),
			"paintsToUse":     arrayOf(paint),
			"paintMix":        nullable(mixSchema()),
			"technique": strEnum(plan.TechBasecoat, plan.TechLayering, plan.TechDrybrushing, plan.TechWashing,
				plan.TechGlazing, plan.TechEdgeHighlight, plan.TechFineDetail, plan.TechVarnish),
			"tool":        str(),
			"toolDetails": str(),
			"dilution": object(map[string]*genai.Schema{
				"ratio": str(), "description": str(), "thinnerNote": str(),
			}, "ratio", "description"),
			"tips":     arrayOf(str()),
			"warnings": arrayOf(str()),
		}, "stepNumber", "partName", "partDescription", "paintsToUse", "technique", "tool", "dilution")),
		"fixationTips": arrayOf(str()),
		"warnings":     arrayOf(str()),
	}, "steps")
}

// inventorySchema describes bulk inventory categorization.
func inventorySchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"paints": arrayOf(object(map[string]*genai.Schema{
			"brand": str(),
			"name":  str(),
			"type":  strEnum(string(inventory.PaintInk), string(inventory.PaintAcrylic), string(inventory.PaintVarnish), string(inventory.PaintOther)),
			"hex":   str(),
		}, "brand", "name", "type", "hex")),
		"thinners": arrayOf(object(map[string]*genai.Schema{
			"brand":       str(),
			"composition": strEnum(inventory.CompositionOriginal, inventory.CompositionCaseiro),
		}, "brand", "composition")),
		"varnishes": arrayOf(object(map[string]*genai.Schema{
			"brand":  str(),
			"finish": strEnum(inventory.FinishBrilhante, inventory.FinishAcetinado, inventory.FinishFosco, inventory.FinishVitralBrilhante),
		}, "brand", "finish")),
		"washes": arrayOf(object(map[string]*genai.Schema{
			"brand":       str(),
			"composition": str(),
		}, "brand", "composition")),
	}, "paints", "thinners", "varnishes", "washes")
}
