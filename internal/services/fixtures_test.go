package services

import (
	"context"
	"strconv"
	"time"

	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"
	"restaurant_pos/internal/repositories"

	"github.com/jonboulle/clockwork"
)

const (
	tableT1 int64 = 1
	tableT2 int64 = 2
	tableT3 int64 = 3

	variantPho     int64 = 10
	variantCoffee  int64 = 11
	variantSoldOut int64 = 12
)

var fixtureNow = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *repositories.MemoryStore
	bus   *events.Bus
	clock *clockwork.FakeClock
}

// newFixture builds an in-memory backend whose mutations are dispatched on a
// local bus, with three tables and a small menu.
func newFixture() *fixture {
	bus := events.NewBus(events.NewMemoryTransport())
	clock := clockwork.NewFakeClockAt(fixtureNow)
	store := repositories.NewMemoryStore(bus, DefaultReservationGuard)
	store.SetClock(clock.Now)

	store.SeedTable(models.Table{ID: tableT1, Code: "T1", Capacity: 4})
	store.SeedTable(models.Table{ID: tableT2, Code: "T2", Capacity: 2})
	store.SeedTable(models.Table{ID: tableT3, Code: "T3", Capacity: 6})
	store.SeedVariant(models.Variant{ID: variantPho, ProductName: "Pho", Name: "Large", Price: dec("50000"), IsAvailable: true})
	store.SeedVariant(models.Variant{ID: variantCoffee, ProductName: "Coffee", Price: dec("25000"), IsAvailable: true})
	store.SeedVariant(models.Variant{ID: variantSoldOut, ProductName: "Crab", Price: dec("90000"), IsAvailable: false})
	return &fixture{store: store, bus: bus, clock: clock}
}

func (f *fixture) drafts() DraftService {
	return NewDraftService(f.store.DraftItems(), f.store.Variants(), f.store.Orders())
}

func (f *fixture) deps() WorkspaceDeps {
	return WorkspaceDeps{
		DraftRepo:        f.store.DraftItems(),
		TableRepo:        f.store.Tables(),
		ReservationRepo:  f.store.Reservations(),
		OrderRepo:        f.store.Orders(),
		CouponRepo:       f.store.Coupons(),
		VariantRepo:      f.store.Variants(),
		SettingRepo:      f.store.Settings(),
		Bus:              f.bus,
		Clock:            f.clock,
		SettleDelay:      DefaultSettleDelay,
		ReservationGuard: DefaultReservationGuard,
		Pricing:          PricingRules{TaxRate: dec("0.10"), DeliveryFee: dec("15000")},
		Linker:           NewTemplatePaymentLinker("https://pay.test/o/%d?amount=%s"),
	}
}

func (f *fixture) table(id int64) models.Table {
	t, err := f.store.Tables().GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return *t
}

func testSession(user int64) *models.Session {
	return &models.Session{UserID: user, Username: "staff", Role: "Staff", TerminalID: "till-1"}
}

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
