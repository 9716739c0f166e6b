package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	expensetypes "github.com/pricewatch/pricewatch/modules/expense/domain/types"
)

func TestExpenses_RecordAndMonthlyRollup(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	for _, body := range []string{
		`{"vendor":"acme feed","category":"supplies","amount":120,"spent_on":"2026-01-08"}`,
		`{"vendor":"acme feed","category":"supplies","amount":30,"spent_on":"2026-01-20"}`,
		`{"vendor":"city power","category":"utilities","amount":80,"spent_on":"2026-02-02"}`,
	} {
		rec := doJSON(t, h, sid, http.MethodPost, "/expense/api/expenses", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("record status=%d body=%s", rec.Code, rec.Body.String())
		}
		var row expensetypes.ExpenseRow
		if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
			t.Fatalf("unmarshal=%v", err)
		}
		if row.ExpenseID == "" {
			t.Fatal("expense_id not generated")
		}
		if row.OrgID != testTenantID {
			t.Fatalf("org_id=%s", row.OrgID)
		}
	}

	rec := doJSON(t, h, sid, http.MethodGet, "/expense/api/expenses?start_date=2026-01-01&end_date=2026-02-28", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rollup status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Months []expensetypes.MonthlyTotal `json:"months"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal=%v", err)
	}
	if len(resp.Months) != 2 {
		t.Fatalf("months=%+v", resp.Months)
	}
	if resp.Months[0].Month != "2026-01" || resp.Months[0].Total != 150 || resp.Months[0].Count != 2 {
		t.Fatalf("january=%+v", resp.Months[0])
	}
	if resp.Months[1].Month != "2026-02" || resp.Months[1].Total != 80 {
		t.Fatalf("february=%+v", resp.Months[1])
	}
}

func TestExpenses_Validation(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	cases := []struct {
		name string
		body string
	}{
		{"missing vendor", `{"amount":10}`},
		{"negative amount", `{"vendor":"x","amount":-5}`},
		{"bad date", `{"vendor":"x","amount":10,"spent_on":"January 5"}`},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, sid, http.MethodPost, "/expense/api/expenses", tc.body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status=%d body=%s", tc.name, rec.Code, rec.Body.String())
		}
	}

	recRange := doJSON(t, h, sid, http.MethodGet, "/expense/api/expenses?start_date=2026-03-01&end_date=2026-01-01", "")
	if recRange.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inverted range status=%d body=%s", recRange.Code, recRange.Body.String())
	}
	recMissing := doJSON(t, h, sid, http.MethodGet, "/expense/api/expenses?start_date=2026-01-01", "")
	if recMissing.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing end_date status=%d body=%s", recMissing.Code, recMissing.Body.String())
	}
}

func TestRecurring_CreateAndList(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	rec := doJSON(t, h, sid, http.MethodPost, "/expense/api/recurring", `{"vendor":"cloudville hosting","category":"software","amount":49.99,"cadence":"Monthly"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	var tpl expensetypes.RecurringTemplate
	if err := json.Unmarshal(rec.Body.Bytes(), &tpl); err != nil {
		t.Fatalf("unmarshal=%v", err)
	}
	if tpl.TemplateID == "" {
		t.Fatal("template_id not generated")
	}
	if tpl.Cadence != "monthly" || !tpl.Active {
		t.Fatalf("template=%+v", tpl)
	}

	recList := doJSON(t, h, sid, http.MethodGet, "/expense/api/recurring", "")
	if recList.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", recList.Code, recList.Body.String())
	}
	var resp struct {
		Templates []expensetypes.RecurringTemplate `json:"templates"`
	}
	if err := json.Unmarshal(recList.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal=%v", err)
	}
	if len(resp.Templates) != 1 || resp.Templates[0].TemplateID != tpl.TemplateID {
		t.Fatalf("templates=%+v", resp.Templates)
	}
}

func TestRecurring_CadenceValidated(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	rec := doJSON(t, h, sid, http.MethodPost, "/expense/api/recurring", `{"vendor":"x","amount":10,"cadence":"fortnightly"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "cadence") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}
