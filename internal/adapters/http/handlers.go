package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"academy/internal/adapters/http/middleware"
	"academy/internal/application/listutil"
	"academy/internal/application/orchestrators"
	"academy/internal/application/overlay"
	"academy/internal/application/projections"
	accountDomain "academy/internal/domain/account"
	"academy/internal/domain/attendance"
	"academy/internal/domain/compensation"
	holidayDomain "academy/internal/domain/holiday"
	"academy/internal/domain/sessionperiod"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}

// requireCapability resolves the session and checks one capability. Writes
// the error response itself; callers bail out on !ok.
func requireCapability(w http.ResponseWriter, r *http.Request, capability string) (middleware.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return middleware.Session{}, false
	}
	if !sess.HasCapability(capability) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return middleware.Session{}, false
	}
	return sess, true
}

// settlementTeacherID picks the teacher a settlement request targets.
// Directors may address any teacher; teachers are pinned to their own id.
func settlementTeacherID(sess middleware.Session, requested string) (string, bool) {
	if sess.Role == accountDomain.RoleDirector {
		if requested == "" {
			return "", false
		}
		return requested, true
	}
	if sess.TeacherID == "" {
		return "", false
	}
	if requested != "" && requested != sess.TeacherID {
		return "", false
	}
	return sess.TeacherID, true
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", handleLogin)
	mux.HandleFunc("/api/logout", handleLogout)
	mux.HandleFunc("/api/account/password", handleChangePassword)

	mux.HandleFunc("/api/grid", handleGrid)
	mux.HandleFunc("/api/roster", handleDailyRoster)
	mux.HandleFunc("/api/attendance/status", handleStatusChange)
	mux.HandleFunc("/api/attendance/annotation", handleAnnotation)
	mux.HandleFunc("/api/attendance/record", handleStudentRecord)

	mux.HandleFunc("/api/students", handleStudentList)
	mux.HandleFunc("/api/summary", handleCompensationSummary)
	mux.HandleFunc("/api/settlement", handleSettlement)
	mux.HandleFunc("/api/settlement/finalize", handleFinalizeSettlement)
	mux.HandleFunc("/api/settlement/unfinalize", handleUnfinalizeSettlement)

	mux.HandleFunc("/api/config", handleCompensationConfig)
	mux.HandleFunc("/api/terms", handleTerms)
	mux.HandleFunc("/api/terms/cancel", handleCancelTerm)
	mux.HandleFunc("/api/holidays", handleHolidays)
	mux.HandleFunc("/api/periods", handleSessionPeriods)

	mux.HandleFunc("/admin/outbox", handleAdminOutbox)
	mux.HandleFunc("/admin/outbox/", handleAdminOutbox)
}

// --- Auth ---

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.LoginDeps{AccountStore: stores.AccountStore})
	switch {
	case errors.Is(err, orchestrators.ErrAccountLocked):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	case err != nil:
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := sessions.Create(result.AccountID, result.Email, result.Role, result.TeacherID)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{
		"email": result.Email,
		"role":  result.Role,
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if cookie, err := r.Cookie("academy_session"); err == nil {
		sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		AccountID:       sess.AccountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore})
	switch {
	case errors.Is(err, orchestrators.ErrCurrentPasswordWrong):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case errors.Is(err, orchestrators.ErrNewPasswordSame):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// --- Attendance grid ---

func handleGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapGridView); !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = attendance.FormatMonth(timeNow())
	}

	result, err := projections.QueryAttendanceGrid(r.Context(), projections.AttendanceGridQuery{
		Month:      month,
		GroupOrder: r.URL.Query()["order"],
	}, projections.AttendanceGridDeps{
		StudentStore: stores.StudentStore,
		CellStore:    stores.AttendanceStore,
		HolidayStore: stores.HolidayStore,
		Overlay:      gridOverlay,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleStudentList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapGridView); !ok {
		return
	}

	params := listutil.ParseListParams(r.URL.Query(), []string{"name", "school", "grade"}, []string{"school", "grade", "class"})
	result, err := projections.QueryStudentList(r.Context(), projections.StudentListQuery{
		Params: params,
	}, projections.StudentListDeps{StudentStore: stores.StudentStore})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDailyRoster serves the operational day view straight from the
// roster mirror.
func handleDailyRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapGridView); !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = timeNow().Format(attendance.DateFormat)
	}
	if _, err := time.Parse(attendance.DateFormat, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	records, err := stores.AttendanceStore.ListRosterByDate(r.Context(), date)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"records": records,
	})
}

// handleStudentRecord serves one student's ledger cells and change history
// over a date range.
func handleStudentRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapGridView); !ok {
		return
	}

	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		http.Error(w, "studentId required", http.StatusBadRequest)
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		var err error
		from, to, err = attendance.MonthBounds(attendance.FormatMonth(timeNow()))
		if err != nil {
			internalError(w, err)
			return
		}
	}
	if from > to {
		http.Error(w, "from must not be after to", http.StatusBadRequest)
		return
	}

	cells, err := stores.AttendanceStore.ListCellsByStudentRange(r.Context(), studentID, from, to)
	if err != nil {
		internalError(w, err)
		return
	}
	history, err := stores.AttendanceStore.ListHistoryByStudent(r.Context(), studentID, from, to)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"studentId": studentID,
		"from":      from,
		"to":        to,
		"cells":     cells,
		"history":   history,
	})
}

// --- Status change (dual-store sync behind the optimistic overlay) ---

func handleStatusChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireCapability(w, r, accountDomain.CapAttendanceEdit)
	if !ok {
		return
	}

	var req struct {
		StudentID string `json:"studentId"`
		ClassID   string `json:"classId"`
		ClassName string `json:"className"`
		DateKey   string `json:"dateKey"`
		Status    string `json:"status"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// One in-flight mutation per logical roster record. A duplicate while
	// the first is pending is dropped, never queued.
	mutationID := req.DateKey + "|" + req.StudentID + "|" + req.ClassID
	if !gridOverlay.Begin(mutationID) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "dropped"})
		return
	}
	defer gridOverlay.End(mutationID)

	key := attendance.CellKey{StudentID: req.StudentID, ClassName: req.ClassName, DateKey: req.DateKey}
	staged := attendance.ValueFromStatus(attendance.Status(req.Status))
	gridOverlay.Stage(overlay.KindValue, key, &staged)

	result, err := orchestrators.ExecuteApplyStatusChange(r.Context(), orchestrators.ApplyStatusChangeInput{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		ClassName: req.ClassName,
		DateKey:   req.DateKey,
		NewStatus: attendance.Status(req.Status),
		ChangedBy: sess.Email,
	}, orchestrators.ApplyStatusChangeDeps{
		StudentStore: stores.StudentStore,
		SyncStore:    stores.AttendanceStore,
		Outbox:       stores.OutboxStore,
	})
	if err != nil {
		gridOverlay.Rollback(overlay.KindValue, key)
		switch {
		case errors.Is(err, orchestrators.ErrDateOutsideWindow):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, attendance.ErrBadStatus):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			internalError(w, err)
		}
		return
	}

	gridOverlay.Commit(overlay.KindValue, key)
	writeJSON(w, http.StatusOK, map[string]any{
		"rosterRecordId":   result.RosterRecordID,
		"invalidationKeys": result.InvalidationKeys,
	})
}

// --- Annotations (memo, homework, cell color) ---

func handleAnnotation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapAttendanceEdit); !ok {
		return
	}

	var req struct {
		StudentID string  `json:"studentId"`
		ClassName string  `json:"className"`
		DateKey   string  `json:"dateKey"`
		Memo      *string `json:"memo"`
		Homework  *bool   `json:"homework"`
		CellColor *string `json:"cellColor"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key := attendance.CellKey{StudentID: req.StudentID, ClassName: req.ClassName, DateKey: req.DateKey}
	staged := stageAnnotations(key, req.Memo, req.Homework, req.CellColor)

	err := orchestrators.ExecuteSetCellAnnotation(r.Context(), orchestrators.SetCellAnnotationInput{
		StudentID: req.StudentID,
		ClassName: req.ClassName,
		DateKey:   req.DateKey,
		Memo:      req.Memo,
		Homework:  req.Homework,
		CellColor: req.CellColor,
	}, orchestrators.SetCellAnnotationDeps{Store: stores.AttendanceStore})
	if err != nil {
		for _, kind := range staged {
			gridOverlay.Rollback(kind, key)
		}
		if errors.Is(err, attendance.ErrBadDateKey) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		internalError(w, err)
		return
	}

	for _, kind := range staged {
		gridOverlay.Commit(kind, key)
	}
	w.WriteHeader(http.StatusOK)
}

// stageAnnotations stages each provided facet and reports which kinds were
// staged, so success and failure paths settle exactly those.
func stageAnnotations(key attendance.CellKey, memo *string, homework *bool, cellColor *string) []overlay.Kind {
	var staged []overlay.Kind
	if memo != nil {
		gridOverlay.Stage(overlay.KindMemo, key, *memo)
		staged = append(staged, overlay.KindMemo)
	}
	if homework != nil {
		gridOverlay.Stage(overlay.KindHomework, key, *homework)
		staged = append(staged, overlay.KindHomework)
	}
	if cellColor != nil {
		gridOverlay.Stage(overlay.KindColor, key, *cellColor)
		staged = append(staged, overlay.KindColor)
	}
	return staged
}

// --- Compensation summary ---

func handleCompensationSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireCapability(w, r, accountDomain.CapSalaryView)
	if !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = attendance.FormatMonth(timeNow())
	}

	teacherID, ok := settlementTeacherID(sess, r.URL.Query().Get("teacherId"))
	if !ok {
		http.Error(w, "teacherId required", http.StatusBadRequest)
		return
	}

	cfg, err := resolveTeacherConfig(r, teacherID)
	if err != nil {
		internalError(w, err)
		return
	}

	result, err := projections.QueryCompensationSummary(r.Context(), projections.CompensationSummaryQuery{
		Month:  month,
		Cutoff: timeNow(),
	}, projections.CompensationSummaryDeps{
		StudentStore: stores.StudentStore,
		CellStore:    stores.AttendanceStore,
		Config:       cfg,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func resolveTeacherConfig(r *http.Request, teacherID string) (*compensation.Config, error) {
	teacherCfg, err := stores.ConfigStore.GetByTeacher(r.Context(), teacherID)
	if err != nil {
		return nil, err
	}
	globalCfg, err := stores.ConfigStore.GetGlobal(r.Context())
	if err != nil {
		return nil, err
	}
	return compensation.ResolveConfig(teacherCfg, globalCfg), nil
}

// --- Settlement ---

func handleSettlement(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		handleGetSettlement(w, r)
	case http.MethodPost:
		handleUpdateSettlement(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireCapability(w, r, accountDomain.CapSalaryView)
	if !ok {
		return
	}

	teacherID, ok := settlementTeacherID(sess, r.URL.Query().Get("teacherId"))
	if !ok {
		http.Error(w, "teacherId required", http.StatusBadRequest)
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = attendance.FormatMonth(timeNow())
	}

	result, err := projections.QueryGetSettlement(r.Context(), projections.GetSettlementQuery{
		TeacherID: teacherID,
		Month:     month,
		Cutoff:    timeNow(),
	}, projections.GetSettlementDeps{
		SettlementStore: stores.SettlementStore,
		ConfigStore:     stores.ConfigStore,
		StudentStore:    stores.StudentStore,
		CellStore:       stores.AttendanceStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleUpdateSettlement(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireCapability(w, r, accountDomain.CapSettlementManage)
	if !ok {
		return
	}

	var req struct {
		TeacherID         string  `json:"teacherId"`
		Month             string  `json:"month"`
		HasBlogBonus      *bool   `json:"hasBlogBonus"`
		HasRetentionBonus *bool   `json:"hasRetentionBonus"`
		OtherAmount       *int    `json:"otherAmount"`
		Note              *string `json:"note"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	teacherID, ok := settlementTeacherID(sess, req.TeacherID)
	if !ok {
		http.Error(w, "teacherId required", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteUpdateSettlement(r.Context(), orchestrators.UpdateSettlementInput{
		TeacherID:         teacherID,
		Month:             req.Month,
		HasBlogBonus:      req.HasBlogBonus,
		HasRetentionBonus: req.HasRetentionBonus,
		OtherAmount:       req.OtherAmount,
		Note:              req.Note,
	}, orchestrators.UpdateSettlementDeps{SettlementStore: stores.SettlementStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func handleFinalizeSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireCapability(w, r, accountDomain.CapSettlementManage)
	if !ok {
		return
	}

	var req struct {
		TeacherID    string `json:"teacherId"`
		Month        string `json:"month"`
		TeacherEmail string `json:"teacherEmail"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	teacherID, ok := settlementTeacherID(sess, req.TeacherID)
	if !ok {
		http.Error(w, "teacherId required", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteFinalizeSettlement(r.Context(), orchestrators.FinalizeSettlementInput{
		TeacherID:    teacherID,
		Month:        req.Month,
		TeacherEmail: req.TeacherEmail,
		FinalizedBy:  sess.Email,
	}, orchestrators.FinalizeSettlementDeps{
		SettlementStore: stores.SettlementStore,
		ConfigStore:     stores.ConfigStore,
		Outbox:          stores.OutboxStore,
	})
	switch {
	case errors.Is(err, orchestrators.ErrNoLiveConfig):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func handleUnfinalizeSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireCapability(w, r, accountDomain.CapSettlementManage)
	if !ok {
		return
	}

	var req struct {
		TeacherID string `json:"teacherId"`
		Month     string `json:"month"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	teacherID, ok := settlementTeacherID(sess, req.TeacherID)
	if !ok {
		http.Error(w, "teacherId required", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteUnfinalizeSettlement(r.Context(), orchestrators.FinalizeSettlementInput{
		TeacherID:   teacherID,
		Month:       req.Month,
		FinalizedBy: sess.Email,
	}, orchestrators.FinalizeSettlementDeps{
		SettlementStore: stores.SettlementStore,
		ConfigStore:     stores.ConfigStore,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- Compensation config ---

func handleCompensationConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sess, ok := requireCapability(w, r, accountDomain.CapSalaryView)
		if !ok {
			return
		}
		teacherID := r.URL.Query().Get("teacherId")
		if sess.Role != accountDomain.RoleDirector {
			teacherID = sess.TeacherID
		}
		cfg, err := resolveTeacherConfig(r, teacherID)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPost:
		sess, ok := requireCapability(w, r, accountDomain.CapConfigEdit)
		if !ok {
			return
		}
		var req struct {
			TeacherID string              `json:"teacherId"`
			Config    compensation.Config `json:"config"`
		}
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		err := orchestrators.ExecuteSaveCompensationConfig(r.Context(), orchestrators.SaveCompensationConfigInput{
			TeacherID: req.TeacherID,
			Config:    req.Config,
			SavedBy:   sess.Email,
		}, orchestrators.SaveCompensationConfigDeps{ConfigStore: stores.ConfigStore})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Enrollment terms ---

func handleTerms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireCapability(w, r, accountDomain.CapTermManage); !ok {
		return
	}

	var req struct {
		StudentID       string `json:"studentId"`
		Month           string `json:"month"`
		BilledAmount    int    `json:"billedAmount"`
		UnitPrice       int    `json:"unitPrice"`
		Source          string `json:"source"`
		BillingRecordID string `json:"billingRecordId"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteCreateEnrollmentTerm(r.Context(), orchestrators.CreateEnrollmentTermInput{
		StudentID:       req.StudentID,
		Month:           req.Month,
		BilledAmount:    req.BilledAmount,
		UnitPrice:       req.UnitPrice,
		Source:          req.Source,
		BillingRecordID: req.BillingRecordID,
	}, orchestrators.CreateEnrollmentTermDeps{TermStore: stores.TermStore})
	if err != nil && !result.AlreadyExisted {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		// Idempotent replay: the existing active term is returned, no
		// duplicate is created.
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"termId":         result.TermID,
		"termNumber":     result.TermNumber,
		"alreadyExisted": result.AlreadyExisted,
	})
}

func handleCancelTerm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireCapability(w, r, accountDomain.CapTermManage)
	if !ok {
		return
	}

	var req struct {
		TermID string `json:"termId"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := orchestrators.ExecuteCancelEnrollmentTerm(r.Context(), orchestrators.CancelEnrollmentTermInput{
		TermID:      req.TermID,
		CancelledBy: sess.Email,
	}, orchestrators.CreateEnrollmentTermDeps{TermStore: stores.TermStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- Holidays ---

func handleHolidays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireCapability(w, r, accountDomain.CapGridView); !ok {
			return
		}
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		if from == "" || to == "" {
			month := r.URL.Query().Get("month")
			if month == "" {
				month = attendance.FormatMonth(timeNow())
			}
			var err error
			from, to, err = attendance.MonthBounds(month)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		holidays, err := stores.HolidayStore.ListOverlapping(r.Context(), from, to)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, holidays)

	case http.MethodPost:
		if !middleware.IsDirector(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Name     string `json:"name"`
			StartKey string `json:"startDate"`
			EndKey   string `json:"endDate"`
		}
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		h := holidayDomain.Holiday{
			ID:       generateID(),
			Name:     req.Name,
			StartKey: req.StartKey,
			EndKey:   req.EndKey,
		}
		if err := h.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := stores.HolidayStore.Save(r.Context(), h); err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, h)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Session periods (per-category month windows shown on settlement views) ---

func handleSessionPeriods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireCapability(w, r, accountDomain.CapSalaryView); !ok {
			return
		}
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil || year <= 0 {
			year = timeNow().Year()
		}
		periods, err := stores.SessionPeriodStore.ListByYear(r.Context(), year)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, periods)

	case http.MethodPost:
		if _, ok := requireCapability(w, r, accountDomain.CapTermManage); !ok {
			return
		}
		var req struct {
			Year          int    `json:"year"`
			Category      string `json:"category"`
			Month         int    `json:"month"`
			SessionsCount int    `json:"sessionsCount"`
			Ranges        []struct {
				StartDate string `json:"startDate"`
				EndDate   string `json:"endDate"`
			} `json:"ranges"`
		}
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		p := sessionperiod.Period{
			ID:            sessionperiod.PeriodID(req.Year, req.Category, req.Month),
			Year:          req.Year,
			Category:      req.Category,
			Month:         req.Month,
			SessionsCount: req.SessionsCount,
		}
		for _, rr := range req.Ranges {
			p.Ranges = append(p.Ranges, sessionperiod.DateRange{StartKey: rr.StartDate, EndKey: rr.EndDate})
		}
		if err := p.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := stores.SessionPeriodStore.Save(r.Context(), p); err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
