package pipeline

import (
	"context"
	"reflect"
	"testing"

	"clientmap/internal"
	"clientmap/internal/gazetteer"
)

type fakeLocator struct {
	coords map[string]internal.Coordinate
	calls  []internal.CityQuery
}

func (f *fakeLocator) Locate(_ context.Context, q internal.CityQuery) (internal.Coordinate, bool) {
	f.calls = append(f.calls, q)
	c, ok := f.coords[q.Display]
	return c, ok
}

type panicLocator struct{}

func (panicLocator) Locate(context.Context, internal.CityQuery) (internal.Coordinate, bool) {
	panic("boom")
}

func row(name, taxID, city, equipment string) internal.RawRecord {
	return internal.RawRecord{Name: name, TaxID: taxID, City: city, Contact: "c-" + taxID, Phone: "p-" + taxID, EquipmentRaw: equipment}
}

func testGazetteer() *gazetteer.Index {
	return gazetteer.BuildIndex([]internal.Place{
		{Name: "São Paulo", Latitude: -23.55, Longitude: -46.63},
		{Name: "Campinas", Latitude: -22.9, Longitude: -47.06},
	})
}

func TestAggregateScenario(t *testing.T) {
	rows := []internal.RawRecord{
		row("Acme Co", "11", "Sao Paulo - SP", "[A]-Pump"),
		row("Acme Co", "22", "Sao Paulo", "[B]-Valve"),
		row("Acme CO", "33", "SAO PAULO", "Not Informed"),
	}
	agg := NewAggregator(LocatorChain{testGazetteer()}, nil, nil, nil)
	entities, stats := Aggregate(context.Background(), rows, agg)

	if len(entities) != 1 {
		t.Fatalf("len=%d", len(entities))
	}
	e := entities[0]
	if e.Name != "Acme Co" || e.TaxID != "11" || e.City != "Sao Paulo - SP" || e.Contact != "c-11" || e.Phone != "p-11" {
		t.Fatalf("scalars not from first row: %+v", e)
	}
	if !reflect.DeepEqual(e.Equipment, []string{"Pump", "Valve"}) {
		t.Fatalf("equipment=%v", e.Equipment)
	}
	if !e.HasCoordinates() || *e.Latitude != -23.55 || *e.Longitude != -46.63 {
		t.Fatalf("coordinates=%v,%v", e.Latitude, e.Longitude)
	}
	if stats.Rows != 3 || stats.Entities != 1 || stats.WithCoordinates != 1 || len(stats.UnresolvedCities) != 0 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAggregateFirstSeenOrderAndSortedEquipment(t *testing.T) {
	rows := []internal.RawRecord{
		row("Zeta", "1", "Campinas", "Valve"),
		row("Alpha", "2", "Campinas", "[9] - Motor"),
		row("zéta", "3", "Campinas", "[1] - Boiler"),
		row("Zeta", "4", "Campinas", "Valve"),
		row("Mid", "5", "Campinas", "não informado"),
	}
	entities, _ := Aggregate(context.Background(), rows, NewAggregator(LocatorChain{testGazetteer()}, nil, nil, nil))

	names := []string{}
	for _, e := range entities {
		names = append(names, e.Name)
	}
	if !reflect.DeepEqual(names, []string{"Zeta", "Alpha", "Mid"}) {
		t.Fatalf("order=%v", names)
	}
	if !reflect.DeepEqual(entities[0].Equipment, []string{"Boiler", "Valve"}) {
		t.Fatalf("equipment=%v", entities[0].Equipment)
	}
	if entities[0].TaxID != "1" {
		t.Fatalf("taxId=%s", entities[0].TaxID)
	}
	if entities[2].Equipment == nil || len(entities[2].Equipment) != 0 {
		t.Fatalf("sentinel-only entity equipment=%#v", entities[2].Equipment)
	}
}

func TestAggregateSkipsBlankNames(t *testing.T) {
	rows := []internal.RawRecord{
		row("", "1", "Campinas", "Pump"),
		row("   \t", "2", "Campinas", "Pump"),
		row("株式会社", "3", "Campinas", "Pump"),
		row("Real", "4", "Campinas", "Pump"),
	}
	entities, stats := Aggregate(context.Background(), rows, NewAggregator(LocatorChain{testGazetteer()}, nil, nil, nil))
	if len(entities) != 1 || entities[0].Name != "Real" {
		t.Fatalf("entities=%+v", entities)
	}
	if stats.Skipped != 3 || stats.Rows != 4 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAggregateLocalLookupWinsOverRemote(t *testing.T) {
	remote := &fakeLocator{coords: map[string]internal.Coordinate{
		"Campinas - SP": {Latitude: 1, Longitude: 1},
		"Itu - SP":      {Latitude: -23.26, Longitude: -47.29},
	}}
	rows := []internal.RawRecord{
		row("A", "1", "Campinas - SP", ""),
		row("B", "2", "Itu - SP", ""),
		row("B", "3", "Itu - SP", ""),
		row("C", "4", "Itu - SP", ""),
	}
	entities, stats := Aggregate(context.Background(), rows, NewAggregator(LocatorChain{testGazetteer(), remote}, nil, nil, nil))

	if *entities[0].Latitude != -22.9 || *entities[0].Longitude != -47.06 {
		t.Fatalf("gazetteer did not win: %v,%v", *entities[0].Latitude, *entities[0].Longitude)
	}
	if *entities[1].Latitude != -23.26 {
		t.Fatalf("remote fallback not used")
	}
	// B and C share Itu: one remote call.
	if len(remote.calls) != 1 {
		t.Fatalf("remote calls=%d", len(remote.calls))
	}
	if remote.calls[0].Key != "itu" || remote.calls[0].Display != "Itu - SP" {
		t.Fatalf("query=%+v", remote.calls[0])
	}
	if stats.WithCoordinates != 3 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAggregateAbsentCoordinates(t *testing.T) {
	rows := []internal.RawRecord{
		row("A", "1", "Atlantis", "Pump"),
		row("B", "2", "ATLANTIS", "Pump"),
		row("C", "3", "", "Pump"),
	}
	entities, stats := Aggregate(context.Background(), rows, NewAggregator(LocatorChain{testGazetteer()}, nil, nil, nil))
	for _, e := range entities {
		if e.Latitude != nil || e.Longitude != nil {
			t.Fatalf("expected absent coordinates for %s", e.Name)
		}
	}
	if !reflect.DeepEqual(stats.UnresolvedCities, []string{"Atlantis"}) {
		t.Fatalf("unresolved=%v", stats.UnresolvedCities)
	}
	if stats.WithCoordinates != 0 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestAggregateLocatesEachCityOnce(t *testing.T) {
	remote := &fakeLocator{coords: map[string]internal.Coordinate{}}
	rows := []internal.RawRecord{
		row("A", "1", "Atlantis", ""),
		row("B", "2", "ATLANTIS", ""),
		row("C", "3", "Atlantis - SP", ""),
		row("D", "4", "Itu", ""),
	}
	entities, stats := Aggregate(context.Background(), rows, NewAggregator(LocatorChain{testGazetteer(), remote}, nil, nil, nil))
	if len(entities) != 4 {
		t.Fatalf("entities=%d", len(entities))
	}
	if len(remote.calls) != 2 {
		t.Fatalf("remote calls=%d, want one per distinct city", len(remote.calls))
	}
	if remote.calls[0].Key != "atlantis" || remote.calls[1].Key != "itu" {
		t.Fatalf("calls=%+v", remote.calls)
	}
	if !reflect.DeepEqual(stats.UnresolvedCities, []string{"Atlantis", "Itu"}) {
		t.Fatalf("unresolved=%v", stats.UnresolvedCities)
	}
}

func TestAggregateRowFailureDoesNotAbort(t *testing.T) {
	agg := NewAggregator(panicLocator{}, nil, nil, nil)
	rows := []internal.RawRecord{
		row("Broken", "1", "Campinas", "Pump"),
		row("Skipped", "2", "", "Valve"),
	}
	entities, stats := Aggregate(context.Background(), rows, agg)
	if stats.Failed != 1 {
		t.Fatalf("failed=%d", stats.Failed)
	}
	if len(entities) != 1 || entities[0].Name != "Skipped" {
		t.Fatalf("entities=%+v", entities)
	}
}
