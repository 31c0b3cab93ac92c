package plan

import (
	"regexp"
	"strings"

	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/rs/zerolog/log"
)

// Canonical techniques.
const (
	TechBasecoat      = "basecoat"
	TechLayering      = "layering"
	TechDrybrushing   = "drybrushing"
	TechWashing       = "washing"
	TechGlazing       = "glazing"
	TechEdgeHighlight = "edge-highlight"
	TechFineDetail    = "fine-detail"
	TechVarnish       = "varnish"
)

// roundRobin is cycled for steps whose technique cannot be inferred.
var roundRobin = []string{TechBasecoat, TechLayering, TechWashing, TechGlazing, TechEdgeHighlight, TechDrybrushing}

var canonicalTechniques = map[string]bool{
	TechBasecoat: true, TechLayering: true, TechDrybrushing: true, TechWashing: true,
	TechGlazing: true, TechEdgeHighlight: true, TechFineDetail: true, TechVarnish: true,
}

// Synonyms, matched against folded technique text. Longer phrases first.
var techniqueSynonyms = []struct {
	pattern string
	tech    string
}{
	{"edge highlight", TechEdgeHighlight},
	{"luz de borda", TechEdgeHighlight},
	{"realce de borda", TechEdgeHighlight},
	{"dry brush", TechDrybrushing},
	{"pincel seco", TechDrybrushing},
	{"base coat", TechBasecoat},
	{"camada base", TechBasecoat},
	{"fine detail", TechFineDetail},
	{"freehand", TechFineDetail},
	{"drybrush", TechDrybrushing},
	{"basecoat", TechBasecoat},
	{"highlight", TechEdgeHighlight},
	{"realce", TechEdgeHighlight},
	{"edge", TechEdgeHighlight},
	{"borda", TechEdgeHighlight},
	{"layer", TechLayering},
	{"camada", TechLayering},
	{"blend", TechLayering},
	{"wash", TechWashing},
	{"lavado", TechWashing},
	{"lavagem", TechWashing},
	{"shade", TechWashing},
	{"glaz", TechGlazing},
	{"veladura", TechGlazing},
	{"filter", TechGlazing},
	{"filtro", TechGlazing},
	{"detail", TechFineDetail},
	{"detalhe", TechFineDetail},
	{"varnish", TechVarnish},
	{"verniz", TechVarnish},
	{"primer", TechBasecoat},
	{"base", TechBasecoat},
}

// partRule constrains techniques for parts whose name mentions one of the
// keywords. The first allowed technique is the rule's default.
type partRule struct {
	name     string
	keywords []string
	allowed  []string
	tool     string
	details  string
}

// Ordered: eye/gem rules come first so "gema do elmo" is treated as a gem.
var partRules = []partRule{
	{
		name:     "eyes",
		keywords: []string{"olho", "eye", "pupila", "iris", "retina"},
		allowed:  []string{TechFineDetail, TechLayering, TechGlazing},
		tool:     "Pincel de detalhe",
		details:  "Pincel 00 ou 000 de ponta fina, pouca tinta na ponta",
	},
	{
		name:     "gems",
		keywords: []string{"gema", "gem", "joia", "jewel", "cristal", "crystal", "pedra preciosa", "rubi", "ruby", "esmeralda", "emerald", "safira", "sapphire"},
		allowed:  []string{TechFineDetail, TechGlazing, TechLayering, TechEdgeHighlight},
		tool:     "Pincel de detalhe",
		details:  "Pincel 0 ou 00; ponto de luz no canto oposto à sombra",
	},
	{
		name:     "varnish",
		keywords: []string{"verniz", "varnish", "fixacao", "selante", "sealant", "acabamento final"},
		allowed:  []string{TechVarnish},
		tool:     "Aerógrafo ou pincel largo",
		details:  "Camadas finas e cruzadas, a 15-20 cm da peça no aerógrafo",
	},
	{
		name:     "metal",
		keywords: []string{"armadura", "armor", "armour", "metal", "espada", "sword", "elmo", "helmet", "escudo", "shield", "arma", "weapon", "lamina", "blade", "machado", "axe", "lanca", "spear", "fivela", "buckle", "malha"},
		allowed:  []string{TechBasecoat, TechWashing, TechDrybrushing, TechEdgeHighlight},
		tool:     "Pincel redondo nº 1",
		details:  "Pincel sintético nº 1; metálicos em camadas finas para não empastar",
	},
	{
		name:     "cloth",
		keywords: []string{"capa", "cloak", "cape", "manto", "roupa", "cloth", "tunica", "tunic", "robe", "calca", "pants", "vestido", "dress", "tecido", "fabric", "saia", "skirt", "faixa", "sash", "luva", "glove"},
		allowed:  []string{TechBasecoat, TechLayering, TechWashing, TechGlazing, TechEdgeHighlight},
		tool:     "Pincel redondo nº 2",
		details:  "Pincel nº 2 para áreas amplas, nº 0 para as dobras",
	},
	{
		name:     "hair",
		keywords: []string{"cabelo", "hair", "barba", "beard", "bigode", "pelo", "pelagem", "fur", "juba", "mane", "pena", "feather"},
		allowed:  []string{TechDrybrushing, TechLayering, TechWashing, TechBasecoat},
		tool:     "Pincel de drybrush",
		details:  "Pincel de cerdas firmes, quase seco, movimentos no sentido dos fios",
	},
	{
		name:     "skin",
		keywords: []string{"pele", "skin", "rosto", "face", "mao", "hand", "braco", "perna", "leg", "flesh", "carne", "torso", "peito"},
		allowed:  []string{TechLayering, TechGlazing, TechBasecoat, TechWashing},
		tool:     "Pincel redondo nº 1",
		details:  "Pincel de ponta fina nº 1 com tinta bem diluída",
	},
	{
		name:     "base",
		keywords: []string{"base", "terreno", "terrain", "chao", "ground", "solo", "pedra", "rock", "grama", "grass", "areia", "sand", "lama", "mud"},
		allowed:  []string{TechDrybrushing, TechWashing, TechBasecoat},
		tool:     "Pincel velho de drybrush",
		details:  "Pincel largo e gasto; texturas aceitam drybrush generoso",
	},
}

type techniqueDefaults struct {
	tool        string
	details     string
	ratio       string
	description string
}

var defaultsByTechnique = map[string]techniqueDefaults{
	TechBasecoat:      {"Pincel chato nº 2", "Cobertura uniforme em duas demãos finas", "1:1", "Consistência de leite, duas demãos finas"},
	TechLayering:      {"Pincel redondo nº 1", "Pincel de ponta fina para camadas sucessivas", "1:2", "Camadas translúcidas, cada uma um pouco mais clara"},
	TechDrybrushing:   {"Pincel de drybrush", "Pincel de cerdas firmes, retire o excesso no papel", "Sem diluição", "Tinta pura quase seca no pincel"},
	TechWashing:       {"Pincel redondo macio nº 2", "Carregue bem o pincel e deixe escorrer para os recessos", "1:3", "Bem fluido, escorrendo para os recessos"},
	TechGlazing:       {"Pincel redondo nº 0", "Camadas muito finas e translúcidas", "1:4", "Quase transparente, várias passadas"},
	TechEdgeHighlight: {"Pincel de detalhe nº 0", "Use a lateral da ponta sobre as arestas", "1:1", "Tinta cremosa para linhas nítidas"},
	TechFineDetail:    {"Pincel de detalhe 00", "Ponta fina, apoie o punho para firmeza", "1:1", "Levemente diluída para fluir na ponta"},
	TechVarnish:       {"Aerógrafo ou pincel largo", "Camadas finas e uniformes", "Pronto para uso", "Conforme o fabricante; agite bem antes"},
}

var multiSpace = regexp.MustCompile(`[\s_]+`)

// canonicalTechnique maps free technique text onto the canonical set.
// ok is false when nothing is recognized.
func canonicalTechnique(raw string) (string, bool) {
	t := strings.TrimSpace(colormatch.Fold(raw))
	if t == "" {
		return "", false
	}
	if canonicalTechniques[t] {
		return t, true
	}
	spaced := multiSpace.ReplaceAllString(strings.ReplaceAll(t, "-", " "), " ")
	for _, s := range techniqueSynonyms {
		if strings.Contains(spaced, s.pattern) {
			return s.tech, true
		}
	}
	return "", false
}

// ruleForPart returns the first rule whose keyword appears in the part name:
// single words match word prefixes (olho -> olhos), phrases match as
// substrings of the folded name.
func ruleForPart(partName string) *partRule {
	folded := colormatch.Fold(partName)
	toks := colormatch.Tokens(partName)
	for i := range partRules {
		for _, kw := range partRules[i].keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(folded, kw) {
					return &partRules[i]
				}
				continue
			}
			for _, tok := range toks {
				if strings.HasPrefix(tok, kw) {
					return &partRules[i]
				}
			}
		}
	}
	return nil
}

// IsVarnishPart reports whether a part name denotes the final varnish step.
func IsVarnishPart(name string) bool {
	r := ruleForPart(name)
	return r != nil && r.name == "varnish"
}

func (r *partRule) allows(tech string) bool {
	for _, a := range r.allowed {
		if a == tech {
			return true
		}
	}
	return false
}

// nextDefault returns the next technique of the round-robin sequence.
func (n *Normalizer) nextDefault() string {
	t := roundRobin[n.rr%len(roundRobin)]
	n.rr++
	return t
}

// resolveTechnique chooses the technique for a step. overridden is true
// when a part rule replaced a technique the model did supply, in which case
// the model's tool text no longer applies.
func (n *Normalizer) resolveTechnique(partName, raw string) (tech string, overridden bool) {
	rule := ruleForPart(partName)
	tech, recognized := canonicalTechnique(raw)

	switch {
	case recognized:
	case strings.TrimSpace(raw) == "" && rule != nil:
		return rule.allowed[0], false
	default:
		tech = n.nextDefault()
		if strings.TrimSpace(raw) != "" {
			log.Debug().Str("part", partName).Str("technique", raw).Str("fallback", tech).Msg("Unrecognized technique")
		}
	}

	if rule != nil && !rule.allows(tech) {
		// Eyes and gems never get drybrushing, among other per-part limits.
		log.Debug().
			Str("part", partName).
			Str("rule", rule.name).
			Str("technique", tech).
			Str("replacement", rule.allowed[0]).
			Msg("Technique not allowed for part; overriding")
		return rule.allowed[0], recognized
	}
	return tech, false
}

// toolFor returns the default tool and tool details for a technique on a
// given part: the part rule wins when its default technique is in use.
func toolFor(partName, tech string) (string, string) {
	if rule := ruleForPart(partName); rule != nil && rule.allowed[0] == tech {
		return rule.tool, rule.details
	}
	d := defaultsByTechnique[tech]
	return d.tool, d.details
}
