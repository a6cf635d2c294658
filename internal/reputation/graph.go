package reputation

import (
	"sort"

	"github.com/user/lei-da-rua/internal/types"
)

// Graph is the static relationship structure spillovers travel along:
// faction alliances and enmities, district adjacency and faction territory.
// Edges are stored directed; alliance symmetry is a data convention.
type Graph struct {
	factions  map[string]*types.Faction
	districts map[string]*types.District
}

// NewGraph builds lookup structures over the loaded factions and districts
func NewGraph(factions []*types.Faction, districts []*types.District) *Graph {
	g := &Graph{
		factions:  make(map[string]*types.Faction, len(factions)),
		districts: make(map[string]*types.District, len(districts)),
	}
	for _, faction := range factions {
		g.factions[faction.ID] = faction
	}
	for _, district := range districts {
		g.districts[district.ID] = district
	}
	return g
}

// Validate rejects graphs whose edges dangle at load time
func (g *Graph) Validate() error {
	for id, faction := range g.factions {
		for _, ally := range faction.Allies {
			if _, ok := g.factions[ally]; !ok {
				return &types.ValidationError{Field: "faction.allies", Message: id + " references unknown faction " + ally}
			}
		}
		for _, enemy := range faction.Enemies {
			if _, ok := g.factions[enemy]; !ok {
				return &types.ValidationError{Field: "faction.enemies", Message: id + " references unknown faction " + enemy}
			}
		}
		if faction.HomeDistrict != "" {
			if _, ok := g.districts[faction.HomeDistrict]; !ok {
				return &types.ValidationError{Field: "faction.home_district", Message: id + " references unknown district " + faction.HomeDistrict}
			}
		}
		for _, territory := range faction.Territories {
			if _, ok := g.districts[territory]; !ok {
				return &types.ValidationError{Field: "faction.territories", Message: id + " references unknown district " + territory}
			}
		}
	}
	for id, district := range g.districts {
		for _, adjacent := range district.Adjacent {
			if _, ok := g.districts[adjacent]; !ok {
				return &types.ValidationError{Field: "district.adjacent", Message: id + " references unknown district " + adjacent}
			}
		}
	}
	return nil
}

// Faction returns one faction by id
func (g *Graph) Faction(id string) (*types.Faction, bool) {
	faction, ok := g.factions[id]
	return faction, ok
}

// District returns one district by id
func (g *Graph) District(id string) (*types.District, bool) {
	district, ok := g.districts[id]
	return district, ok
}

// FactionsIn returns the factions operating inside a district, sorted by id
func (g *Graph) FactionsIn(districtID string) []*types.Faction {
	var factions []*types.Faction
	for _, faction := range g.factions {
		if faction.OperatesIn(districtID) {
			factions = append(factions, faction)
		}
	}
	sort.Slice(factions, func(i, j int) bool {
		return factions[i].ID < factions[j].ID
	})
	return factions
}

// DistrictIDs returns every district id, sorted
func (g *Graph) DistrictIDs() []string {
	ids := make([]string, 0, len(g.districts))
	for id := range g.districts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultGraph returns the built-in city layout and faction relations.
// Deployments override both via assets/data/districts.json and factions.json.
func DefaultGraph() *Graph {
	districts := []*types.District{
		{ID: "centro", Name: "Centro", Zone: "centro", Adjacent: []string{"porto", "morro_azul", "vila_operaria", "orla"}},
		{ID: "porto", Name: "Porto Velho", Zone: "centro", Adjacent: []string{"centro", "vila_operaria"}},
		{ID: "morro_azul", Name: "Morro Azul", Zone: "zona_norte", Adjacent: []string{"centro", "baixada"}},
		{ID: "baixada", Name: "Baixada", Zone: "zona_norte", Adjacent: []string{"morro_azul", "vila_operaria"}},
		{ID: "vila_operaria", Name: "Vila Operária", Zone: "zona_oeste", Adjacent: []string{"centro", "porto", "baixada"}},
		{ID: "orla", Name: "Orla", Zone: "zona_sul", Adjacent: []string{"centro"}},
	}
	factions := []*types.Faction{
		{
			ID: "comando_do_porto", Name: "Comando do Porto",
			Allies: []string{"sindicato_do_asfalto"}, Enemies: []string{"familia_do_morro"},
			HomeDistrict: "porto", Territories: []string{"centro"},
			ValuesLoyalty: true, ValuesMoney: true,
		},
		{
			ID: "familia_do_morro", Name: "Família do Morro",
			Allies: []string{"os_fantasmas"}, Enemies: []string{"comando_do_porto", "milicia_da_baixada"},
			HomeDistrict: "morro_azul",
			ValuesLoyalty: true, ValuesViolence: true,
		},
		{
			ID: "sindicato_do_asfalto", Name: "Sindicato do Asfalto",
			Allies: []string{"comando_do_porto"}, Enemies: []string{"os_fantasmas"},
			HomeDistrict: "vila_operaria", Territories: []string{"orla"},
			ValuesMoney: true,
		},
		{
			ID: "milicia_da_baixada", Name: "Milícia da Baixada",
			Enemies:      []string{"familia_do_morro"},
			HomeDistrict: "baixada",
			ValuesViolence: true,
		},
		{
			ID: "os_fantasmas", Name: "Os Fantasmas",
			Allies: []string{"familia_do_morro"}, Enemies: []string{"sindicato_do_asfalto"},
			HomeDistrict: "centro",
			ValuesMoney: true,
		},
	}
	return NewGraph(factions, districts)
}
