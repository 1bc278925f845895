package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ahis-social/server/internal/service"
	"github.com/ahis-social/server/internal/transport/http/middleware"
	"github.com/ahis-social/server/pkg/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	log                 *zap.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		log:                 log.Named("conversations"),
	}
}

type createConversationRequest struct {
	Participants []string `json:"participants" validate:"required,min=1,max=50,dive,uuid"`
	IsGroup      bool     `json:"isGroup"`
	GroupName    *string  `json:"groupName" validate:"omitempty,max=100"`
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		h.log.Error("list conversations", zap.Stringer("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	errs := validator.Struct(req)
	if req.IsGroup && (req.GroupName == nil || strings.TrimSpace(*req.GroupName) == "") {
		errs.Add("groupName", "groupName is required for group conversations")
	}
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	input := service.CreateConversationInput{IsGroup: req.IsGroup, GroupName: req.GroupName}
	for _, p := range req.Participants {
		input.Participants = append(input.Participants, uuid.MustParse(p))
	}

	conv, err := h.conversationService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidParticipants):
			writeError(w, http.StatusBadRequest, "INVALID_PARTICIPANTS", err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			h.log.Error("create conversation", zap.Stringer("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	// Unparsable values fall back to the defaults; the service clamps the rest.
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.conversationService.ListMessages(r.Context(), userID, convID, offset, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this conversation")
		default:
			h.log.Error("list messages", zap.Stringer("conversation_id", convID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
