package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/repository"
	"kudos/internal/services"
)

type APIHandler struct {
	userService       services.UserService
	taskService       services.TaskService
	completionService services.TaskCompletionService
	ruleService       services.BonusRuleService
	ledgerService     services.LedgerService
	notifications     services.NotificationService
}

func NewAPIHandler(
	userService services.UserService,
	taskService services.TaskService,
	completionService services.TaskCompletionService,
	ruleService services.BonusRuleService,
	ledgerService services.LedgerService,
	notifications services.NotificationService,
) *APIHandler {
	return &APIHandler{
		userService:       userService,
		taskService:       taskService,
		completionService: completionService,
		ruleService:       ruleService,
		ledgerService:     ledgerService,
		notifications:     notifications,
	}
}

// respondError maps service error kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindInvalidState:
		status = http.StatusUnprocessableEntity
	case apperrors.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.KindConflict:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// User endpoints

func (h *APIHandler) CreateUser(c *gin.Context) {
	var req struct {
		models.User
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.userService.CreateUser(&req.User, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req.User)
}

func (h *APIHandler) GetUser(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *APIHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.GetAllUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Group endpoints

func (h *APIHandler) CreateGroup(c *gin.Context) {
	var req struct {
		models.Group
		CreatedBy uint `json:"created_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.taskService.CreateGroup(&req.Group, req.CreatedBy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req.Group)
}

func (h *APIHandler) ListGroups(c *gin.Context) {
	groups, err := h.taskService.GetGroups()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Task endpoints

func (h *APIHandler) CreateTask(c *gin.Context) {
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := h.taskService.CreateTask(&task); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *APIHandler) GetTask(c *gin.Context) {
	taskID, ok := paramID(c, "task_id")
	if !ok {
		return
	}
	task, err := h.taskService.GetTaskByID(taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) ListTaskTypes(c *gin.Context) {
	taskTypes, err := h.taskService.GetTaskTypes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskTypes)
}

// Completion workflow endpoints

func (h *APIHandler) SubmitCompletion(c *gin.Context) {
	taskID, ok := paramID(c, "task_id")
	if !ok {
		return
	}

	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	completion, err := h.completionService.SubmitCompletion(taskID, req.UserID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, completion)
}

func (h *APIHandler) ReviewCompletion(c *gin.Context) {
	completionID, ok := paramID(c, "completion_id")
	if !ok {
		return
	}

	var req struct {
		Status     models.CompletionStatus `json:"status" binding:"required"`
		ReviewerID uint                    `json:"reviewer_id" binding:"required"`
		Notes      string                  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	completion, err := h.completionService.ReviewCompletion(completionID, req.Status, req.ReviewerID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (h *APIHandler) GetCompletion(c *gin.Context) {
	completionID, ok := paramID(c, "completion_id")
	if !ok {
		return
	}
	completion, err := h.completionService.GetCompletion(completionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

func (h *APIHandler) ListTaskCompletions(c *gin.Context) {
	taskID, ok := paramID(c, "task_id")
	if !ok {
		return
	}
	var status *models.CompletionStatus
	if raw := c.Query("status"); raw != "" {
		s := models.CompletionStatus(raw)
		status = &s
	}
	completions, err := h.completionService.ListCompletionsForTask(taskID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, completions)
}

// Bonus rule endpoints

func (h *APIHandler) CreateRule(c *gin.Context) {
	var req struct {
		models.BonusRule
		CreatedBy uint `json:"created_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.ruleService.CreateRule(&req.BonusRule, req.CreatedBy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req.BonusRule)
}

func (h *APIHandler) GetRule(c *gin.Context) {
	ruleID, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	rule, err := h.ruleService.GetRuleByID(ruleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *APIHandler) UpdateRule(c *gin.Context) {
	ruleID, ok := paramID(c, "rule_id")
	if !ok {
		return
	}

	var req struct {
		models.BonusRule
		UpdatedBy uint `json:"updated_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.BonusRule.ID = ruleID

	if err := h.ruleService.UpdateRule(&req.BonusRule, req.UpdatedBy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req.BonusRule)
}

func (h *APIHandler) DeleteRule(c *gin.Context) {
	ruleID, ok := paramID(c, "rule_id")
	if !ok {
		return
	}
	if err := h.ruleService.DeleteRule(ruleID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *APIHandler) ListRules(c *gin.Context) {
	var filter repository.RuleFilter
	if raw := c.Query("group_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			groupID := uint(id)
			filter.GroupID = &groupID
		}
	}
	if raw := c.Query("is_active"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}
	filter.IncludeGlobal = c.Query("include_global") == "true"

	rules, err := h.ruleService.ListRules(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Ledger endpoints

func (h *APIHandler) GetBalance(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	balance, err := h.ledgerService.GetBalance(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

func (h *APIHandler) ListTransactions(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	transactions, err := h.ledgerService.ListTransactions(userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *APIHandler) AdjustBalance(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	var req struct {
		Amount     decimal.Decimal `json:"amount" binding:"required"`
		Reason     string          `json:"reason" binding:"required"`
		AdjustedBy uint            `json:"adjusted_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	entry, err := h.ledgerService.AdjustBalance(userID, req.Amount, req.Reason, req.AdjustedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *APIHandler) ListNotifications(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.notifications.ListUserNotifications(userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// Health check
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
