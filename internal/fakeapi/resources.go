package fakeapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func pathID(r *http.Request) uint64 {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return id
}

// settingLocked returns the user's settings, creating defaults if missing
func (s *Server) settingLocked(userID uint64) *Setting {
	setting, ok := s.settings[userID]
	if !ok {
		setting = &Setting{ID: s.newIDLocked(), UserID: userID, Language: "EN", Currency: "MKD"}
		s.settings[userID] = setting
	}
	return setting
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// ============================================================================
// Users
// ============================================================================

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	acct, ok := s.users[userID]
	var user User
	if ok {
		user = *acct.User
	}
	s.mu.Unlock()

	if !ok {
		errorResponse(w, "user not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req struct {
		Name *string `json:"name"`
	}
	if !decodeBody(r, &req) || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	acct, ok := s.users[userID]
	if !ok {
		s.mu.Unlock()
		errorResponse(w, "user not found", http.StatusNotFound)
		return
	}
	user := acct.User
	now := s.cfg.Now()
	user.Name = strings.TrimSpace(*req.Name)
	user.UpdatedAt = &now
	out := *user
	s.mu.Unlock()

	jsonResponse(w, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, userID uint64) {
	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	records := s.filterRecordsLocked(userID, filter)
	categories := make(map[uint64]string)
	methods := make(map[uint64]string)
	for _, c := range s.categories {
		categories[c.ID] = c.Name
	}
	for _, pm := range s.paymentMethods {
		methods[pm.ID] = pm.Name
	}
	s.mu.Unlock()

	filename := fmt.Sprintf("monexa-export-%s.csv", s.cfg.Now().Format(time.DateOnly))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write([]string{"Date", "Category", "Payment Method", "Amount", "Currency", "Description"})
	for _, rec := range records {
		description := ""
		if rec.Description != nil {
			description = *rec.Description
		}
		cw.Write([]string{
			rec.Date.Format(time.DateOnly),
			categories[rec.CategoryID],
			methods[rec.PaymentMethodID],
			strconv.FormatFloat(rec.Amount, 'f', 2, 64),
			rec.Currency,
			description,
		})
	}
	cw.Flush()
}

// ============================================================================
// Records
// ============================================================================

type recordFilter struct {
	start, end       time.Time
	categoryID       uint64
	paymentMethodIDs map[uint64]bool
	search           string
	sortBy           string
	sortOrder        string
}

func parseRecordFilter(q url.Values) (recordFilter, error) {
	f := recordFilter{sortBy: "date", sortOrder: "desc"}
	var err error
	if v := q.Get("startDate"); v != "" {
		if f.start, err = parseTime(v); err != nil {
			return f, fmt.Errorf("invalid startDate")
		}
	}
	if v := q.Get("endDate"); v != "" {
		if f.end, err = parseTime(v); err != nil {
			return f, fmt.Errorf("invalid endDate")
		}
	}
	if v := q.Get("categoryId"); v != "" {
		if f.categoryID, err = strconv.ParseUint(v, 10, 64); err != nil {
			return f, fmt.Errorf("invalid categoryId")
		}
	}
	for _, v := range q["paymentMethodIds"] {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid paymentMethodIds")
		}
		if f.paymentMethodIDs == nil {
			f.paymentMethodIDs = make(map[uint64]bool)
		}
		f.paymentMethodIDs[id] = true
	}
	f.search = strings.ToLower(strings.TrimSpace(q.Get("search")))
	if v := q.Get("sortBy"); v != "" {
		if v != "date" && v != "amount" {
			return f, fmt.Errorf("invalid sortBy")
		}
		f.sortBy = v
	}
	if v := q.Get("sortOrder"); v != "" {
		if v != "asc" && v != "desc" {
			return f, fmt.Errorf("invalid sortOrder")
		}
		f.sortOrder = v
	}
	return f, nil
}

func (f recordFilter) matches(rec *Record) bool {
	if !f.start.IsZero() && rec.Date.Before(f.start) {
		return false
	}
	if !f.end.IsZero() && rec.Date.After(f.end) {
		return false
	}
	if f.categoryID != 0 && rec.CategoryID != f.categoryID {
		return false
	}
	if f.paymentMethodIDs != nil && !f.paymentMethodIDs[rec.PaymentMethodID] {
		return false
	}
	if f.search != "" {
		if rec.Description == nil || !strings.Contains(strings.ToLower(*rec.Description), f.search) {
			return false
		}
	}
	return true
}

func (s *Server) filterRecordsLocked(userID uint64, f recordFilter) []Record {
	out := make([]Record, 0)
	for _, rec := range s.records {
		if rec.UserID == userID && f.matches(rec) {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch f.sortBy {
		case "amount":
			if out[i].Amount == out[j].Amount {
				less = out[i].ID < out[j].ID
			} else {
				less = out[i].Amount < out[j].Amount
			}
		default:
			if out[i].Date.Equal(out[j].Date) {
				less = out[i].ID < out[j].ID
			} else {
				less = out[i].Date.Before(out[j].Date)
			}
		}
		if f.sortOrder == "desc" {
			return !less
		}
		return less
	})
	return out
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request, userID uint64) {
	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	records := s.filterRecordsLocked(userID, filter)
	s.mu.Unlock()
	jsonResponse(w, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	rec, ok := s.records[pathID(r)]
	var out Record
	if ok && rec.UserID == userID {
		out = *rec
	}
	s.mu.Unlock()

	if !ok || out.UserID != userID {
		errorResponse(w, "record not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, out)
}

// applyRecordLocked validates req against the user's data and writes it into rec
func (s *Server) applyRecordLocked(userID uint64, rec *Record, req *recordRequest) string {
	if req.CategoryID != nil {
		c, ok := s.categories[*req.CategoryID]
		if !ok || c.UserID != userID {
			return "invalid category"
		}
		rec.CategoryID = *req.CategoryID
	}
	if req.PaymentMethodID != nil {
		pm, ok := s.paymentMethods[*req.PaymentMethodID]
		if !ok || pm.UserID != userID {
			return "invalid payment method"
		}
		rec.PaymentMethodID = *req.PaymentMethodID
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return "amount must be positive"
		}
		rec.Amount = *req.Amount
	}
	if req.Currency != nil {
		if !currencies[*req.Currency] {
			return "invalid currency"
		}
		rec.Currency = *req.Currency
	}
	if req.Description != nil {
		d := *req.Description
		rec.Description = &d
	}
	if req.Date != nil {
		rec.Date = *req.Date
	}
	return ""
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req recordRequest
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}
	if req.CategoryID == nil || req.PaymentMethodID == nil || req.Amount == nil || req.Date == nil {
		errorResponse(w, "categoryId, paymentMethodId, amount and date are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rec := &Record{UserID: userID, CreatedAt: s.cfg.Now(), Currency: s.settingLocked(userID).Currency}
	if msg := s.applyRecordLocked(userID, rec, &req); msg != "" {
		s.mu.Unlock()
		errorResponse(w, msg, http.StatusBadRequest)
		return
	}
	rec.ID = s.newIDLocked()
	s.records[rec.ID] = rec
	out := *rec
	s.mu.Unlock()

	jsonResponse(w, out)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req recordRequest
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pathID(r)]
	if !ok || rec.UserID != userID {
		errorResponse(w, "record not found", http.StatusNotFound)
		return
	}
	updated := *rec
	if msg := s.applyRecordLocked(userID, &updated, &req); msg != "" {
		errorResponse(w, msg, http.StatusBadRequest)
		return
	}
	now := s.cfg.Now()
	updated.UpdatedAt = &now
	*rec = updated

	jsonResponse(w, updated)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := pathID(r)
	rec, ok := s.records[id]
	if !ok || rec.UserID != userID {
		errorResponse(w, "record not found", http.StatusNotFound)
		return
	}
	delete(s.records, id)
	messageResponse(w, "record deleted")
}

// handleRecordSummary nets income against expenses. Amounts are summed at
// face value; there is no currency conversion.
func (s *Server) handleRecordSummary(w http.ResponseWriter, r *http.Request, userID uint64) {
	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	summary := recordSummary{Currency: s.settingLocked(userID).Currency}
	for _, rec := range s.filterRecordsLocked(userID, filter) {
		c, ok := s.categories[rec.CategoryID]
		if !ok {
			continue
		}
		switch c.Type {
		case CategoryIncome:
			summary.Amount += rec.Amount
		case CategoryExpense:
			summary.Amount -= rec.Amount
		}
	}
	s.mu.Unlock()

	jsonResponse(w, summary)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, userID uint64) {
	categoryID, _ := strconv.ParseUint(r.URL.Query().Get("categoryId"), 10, 64)
	suggestions := make([]string, 0)
	if categoryID == 0 {
		jsonResponse(w, suggestions)
		return
	}

	s.mu.Lock()
	records := s.filterRecordsLocked(userID, recordFilter{categoryID: categoryID, sortBy: "date", sortOrder: "desc"})
	s.mu.Unlock()

	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.Description == nil || *rec.Description == "" || seen[*rec.Description] {
			continue
		}
		seen[*rec.Description] = true
		suggestions = append(suggestions, *rec.Description)
		if len(suggestions) == 10 {
			break
		}
	}
	jsonResponse(w, suggestions)
}

// ============================================================================
// Categories
// ============================================================================

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	out := make([]Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	jsonResponse(w, out)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	c, ok := s.categories[pathID(r)]
	var out Category
	if ok {
		out = *c
	}
	s.mu.Unlock()

	if !ok || out.UserID != userID {
		errorResponse(w, "category not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, out)
}

func applyCategory(c *Category, req *categoryRequest) string {
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return "name is required"
		}
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		if *req.Type != CategoryIncome && *req.Type != CategoryExpense {
			return "invalid category type"
		}
		c.Type = *req.Type
	}
	if req.Description != nil {
		d := *req.Description
		c.Description = &d
	}
	if req.Color != nil {
		color := *req.Color
		c.Color = &color
	}
	return ""
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req categoryRequest
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}
	if req.Name == nil || req.Type == nil {
		errorResponse(w, "name and type are required", http.StatusBadRequest)
		return
	}

	c := &Category{UserID: userID}
	if msg := applyCategory(c, &req); msg != "" {
		errorResponse(w, msg, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	c.ID = s.newIDLocked()
	s.categories[c.ID] = c
	out := *c
	s.mu.Unlock()

	jsonResponse(w, out)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req categoryRequest
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[pathID(r)]
	if !ok || c.UserID != userID {
		errorResponse(w, "category not found", http.StatusNotFound)
		return
	}
	updated := *c
	if msg := applyCategory(&updated, &req); msg != "" {
		errorResponse(w, msg, http.StatusBadRequest)
		return
	}
	*c = updated
	jsonResponse(w, updated)
}

// handleDeleteCategory removes the category along with its records
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := pathID(r)
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		errorResponse(w, "category not found", http.StatusNotFound)
		return
	}
	delete(s.categories, id)
	for rid, rec := range s.records {
		if rec.CategoryID == id {
			delete(s.records, rid)
		}
	}
	messageResponse(w, "category deleted")
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request, userID uint64) {
	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	stats := categoryStatistics{Currency: s.settingLocked(userID).Currency, Categories: make([]categoryStatItem, 0)}
	byCategory := make(map[uint64]*categoryStatItem)
	for _, rec := range s.filterRecordsLocked(userID, filter) {
		c, ok := s.categories[rec.CategoryID]
		if !ok {
			continue
		}
		item, ok := byCategory[c.ID]
		if !ok {
			item = &categoryStatItem{CategoryID: c.ID, CategoryName: c.Name, CategoryType: c.Type, Color: c.Color}
			byCategory[c.ID] = item
		}
		item.RecordCount++
		item.TotalAmount += rec.Amount
		if c.Type == CategoryIncome {
			stats.TotalIncome += rec.Amount
		} else {
			stats.TotalExpense += rec.Amount
		}
	}
	s.mu.Unlock()

	for _, item := range byCategory {
		stats.Categories = append(stats.Categories, *item)
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].TotalAmount == stats.Categories[j].TotalAmount {
			return stats.Categories[i].CategoryID < stats.Categories[j].CategoryID
		}
		return stats.Categories[i].TotalAmount > stats.Categories[j].TotalAmount
	})
	stats.NetBalance = stats.TotalIncome - stats.TotalExpense

	jsonResponse(w, stats)
}

// ============================================================================
// Payment methods
// ============================================================================

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	out := make([]PaymentMethod, 0)
	for _, pm := range s.paymentMethods {
		if pm.UserID == userID {
			out = append(out, *pm)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	jsonResponse(w, out)
}

func (s *Server) handleGetPaymentMethod(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	pm, ok := s.paymentMethods[pathID(r)]
	var out PaymentMethod
	if ok {
		out = *pm
	}
	s.mu.Unlock()

	if !ok || out.UserID != userID {
		errorResponse(w, "payment method not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, out)
}

type paymentMethodRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req paymentMethodRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.Name) == "" {
		errorResponse(w, "name is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pm := &PaymentMethod{ID: s.newIDLocked(), UserID: userID, Name: strings.TrimSpace(req.Name)}
	s.paymentMethods[pm.ID] = pm
	out := *pm
	s.mu.Unlock()

	jsonResponse(w, out)
}

func (s *Server) handleUpdatePaymentMethod(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req paymentMethodRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.Name) == "" {
		errorResponse(w, "name is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pm, ok := s.paymentMethods[pathID(r)]
	if !ok || pm.UserID != userID {
		errorResponse(w, "payment method not found", http.StatusNotFound)
		return
	}
	pm.Name = strings.TrimSpace(req.Name)
	jsonResponse(w, *pm)
}

func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := pathID(r)
	pm, ok := s.paymentMethods[id]
	if !ok || pm.UserID != userID {
		errorResponse(w, "payment method not found", http.StatusNotFound)
		return
	}
	for _, rec := range s.records {
		if rec.PaymentMethodID == id {
			errorResponse(w, "payment method is in use", http.StatusConflict)
			return
		}
	}
	delete(s.paymentMethods, id)
	messageResponse(w, "payment method deleted")
}

// ============================================================================
// Settings
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, userID uint64) {
	s.mu.Lock()
	out := *s.settingLocked(userID)
	s.mu.Unlock()
	jsonResponse(w, out)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, userID uint64) {
	var req struct {
		Language *string `json:"language"`
		Currency *string `json:"currency"`
	}
	if !decodeBody(r, &req) {
		errorResponse(w, "invalid input", http.StatusBadRequest)
		return
	}
	if req.Language != nil && !languages[*req.Language] {
		errorResponse(w, "invalid language", http.StatusBadRequest)
		return
	}
	if req.Currency != nil && !currencies[*req.Currency] {
		errorResponse(w, "invalid currency", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	setting := s.settingLocked(userID)
	if req.Language != nil {
		setting.Language = *req.Language
	}
	if req.Currency != nil {
		setting.Currency = *req.Currency
	}
	out := *setting
	s.mu.Unlock()

	jsonResponse(w, out)
}
