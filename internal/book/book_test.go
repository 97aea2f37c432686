package book

import "testing"

func TestViewAddRemoveGet(t *testing.T) {
	v := NewView()
	v.Add(Entry{OrderID: 3, Price: 1.0, BaseAmount: 10})
	v.Add(Entry{OrderID: 1, Price: 1.0, BaseAmount: 20})
	v.Add(Entry{OrderID: 2, Price: 0.5, BaseAmount: 30})

	if v.Len() != 3 {
		t.Fatalf("Len = %d, want 3", v.Len())
	}

	e, ok := v.Get(1)
	if !ok || e.BaseAmount != 20 {
		t.Fatalf("Get(1) = %+v, %v", e, ok)
	}

	removed, ok := v.Remove(2)
	if !ok || removed.OrderID != 2 {
		t.Fatalf("Remove(2) = %+v, %v", removed, ok)
	}
	if v.Len() != 2 {
		t.Fatalf("Len after remove = %d, want 2", v.Len())
	}
	if _, ok := v.Get(2); ok {
		t.Fatal("Get(2) should fail after removal")
	}
}

func TestViewOrderedByPriceThenID(t *testing.T) {
	v := NewView()
	v.Add(Entry{OrderID: 5, Price: 2.0})
	v.Add(Entry{OrderID: 2, Price: 1.0})
	v.Add(Entry{OrderID: 1, Price: 1.0})

	want := []uint32{1, 2, 5}
	for i, w := range want {
		if v.entries[i].OrderID != w {
			t.Errorf("entries[%d].OrderID = %d, want %d", i, v.entries[i].OrderID, w)
		}
	}
}

func TestMatchLimitBuyMatchesCheaperOrEqualSells(t *testing.T) {
	b := NewBook()
	b.Insert(Entry{OrderID: 1, Side: Sell, Price: 0.01, BaseAmount: 60})
	b.Insert(Entry{OrderID: 2, Side: Sell, Price: 0.01, BaseAmount: 50})
	b.Insert(Entry{OrderID: 3, Side: Sell, Price: 0.01, BaseAmount: 40})
	b.Insert(Entry{OrderID: 4, Side: Sell, Price: 0.02, BaseAmount: 1000})

	taken, left := MatchLimit(b, Incoming{Side: Buy, Price: 0.01, Amount: 120})

	if left != 10 {
		t.Errorf("amountLeft = %d, want 10", left)
	}
	var sum uint64
	ids := map[uint32]bool{}
	for _, e := range taken {
		sum += e.BaseAmount
		ids[e.OrderID] = true
		if e.Price > 0.01 {
			t.Errorf("taken entry %d has price %v, violates BUY predicate (price<=0.01)", e.OrderID, e.Price)
		}
	}
	if sum+left != 120 {
		t.Errorf("conservation violated: sum(taken)=%d + left=%d != 120", sum, left)
	}
	if !ids[1] || !ids[2] || ids[3] {
		t.Errorf("expected largest-first greedy fill to take [60,50], got ids=%v", ids)
	}
}

func TestMatchLimitSellMatchesDearerOrEqualBuys(t *testing.T) {
	b := NewBook()
	b.Insert(Entry{OrderID: 1, Side: Buy, Price: 0.02, BaseAmount: 30})
	b.Insert(Entry{OrderID: 2, Side: Buy, Price: 0.01, BaseAmount: 100})

	taken, left := MatchLimit(b, Incoming{Side: Sell, Price: 0.02, Amount: 30})

	if len(taken) != 1 || taken[0].OrderID != 1 {
		t.Fatalf("taken = %+v, want [order 1]", taken)
	}
	if left != 0 {
		t.Errorf("amountLeft = %d, want 0", left)
	}
}

func TestMatchLimitConservation(t *testing.T) {
	b := NewBook()
	b.Insert(Entry{OrderID: 1, Side: Sell, Price: 1.0, BaseAmount: 7})
	b.Insert(Entry{OrderID: 2, Side: Sell, Price: 1.0, BaseAmount: 3})

	order := Incoming{Side: Buy, Price: 1.0, Amount: 11}
	taken, left := MatchLimit(b, order)

	var sum uint64
	for _, e := range taken {
		sum += e.BaseAmount
	}
	if sum+left != order.Amount {
		t.Errorf("sum(taken)=%d + left=%d != order.Amount=%d", sum, left, order.Amount)
	}
}

func TestBookContainsAndRemove(t *testing.T) {
	b := NewBook()
	b.Insert(Entry{OrderID: 9, Side: Buy, Price: 1.0, BaseAmount: 5})
	if !b.Contains(9) {
		t.Fatal("expected book to contain order 9")
	}
	e, ok := b.Remove(9)
	if !ok || e.OrderID != 9 {
		t.Fatalf("Remove(9) = %+v, %v", e, ok)
	}
	if b.Contains(9) {
		t.Fatal("order 9 should be gone after removal")
	}
}
