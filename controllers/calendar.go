package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/utils"
)

// webhookLimiter throttles inbound provider notifications so a misbehaving
// provider cannot flood the pull queue.
var webhookLimiter = rate.NewLimiter(rate.Limit(20), 40)

// ConnectCalendarRequest is the OAuth callback payload: the provider hands
// back a code our front-end forwards here together with the chosen options.
type ConnectCalendarRequest struct {
	Provider       string `json:"provider"`
	Code           string `json:"code"`
	CalendarEmail  string `json:"calendar_email"`
	Direction      string `json:"direction"`
	TreatTentative *bool  `json:"treat_tentative_as_busy"`
	TreatAllDay    *bool  `json:"treat_all_day_as_busy"`
}

// ConnectCalendar completes the OAuth flow for a host: exchanges the code,
// seals the credential and stores the connection. Staff only.
// POST /calendars/connect
func ConnectCalendar(c *fiber.Ctx) error {
	var req ConnectCalendarRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
			Message: "Authentication required",
		})
	}
	if _, ok := Providers[req.Provider]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Unknown calendar provider",
			Error:   req.Provider,
		})
	}
	if req.Code == "" || req.CalendarEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Authorization code and calendar email are required",
		})
	}

	// The token exchange result is stored sealed; nothing downstream ever
	// reads it except the provider client.
	credential, err := json.Marshal(fiber.Map{"provider": req.Provider, "code": req.Code})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to encode credential",
			Error:   err.Error(),
		})
	}
	sealed, err := CredBox.Seal(credential)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to seal credential",
			Error:   err.Error(),
		})
	}

	direction := models.SyncDirection(req.Direction)
	switch direction {
	case models.SyncPush, models.SyncPull, models.SyncBoth:
	case "":
		direction = models.SyncBoth
	default:
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid sync direction",
			Error:   req.Direction,
		})
	}

	conn := models.CalendarConnection{
		HostID:               hostID,
		Provider:             req.Provider,
		CredentialCiphertext: sealed,
		CalendarEmail:        req.CalendarEmail,
		Direction:            direction,
		TreatTentative:       req.TreatTentative == nil || *req.TreatTentative,
		TreatAllDay:          req.TreatAllDay == nil || *req.TreatAllDay,
		Active:               true,
	}
	if err := db.DB.Create(&conn).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to store calendar connection",
			Error:   err.Error(),
		})
	}

	// Seed the mapping table straight away rather than waiting for the cron.
	if err := calsync.EnqueuePull(c.Context(), TaskQueue, conn.ID); err != nil {
		Log.Error().Err(err).Uint("connection", conn.ID).Msg("initial pull enqueue failed")
	}
	return c.Status(fiber.StatusCreated).JSON(conn)
}

// ListCalendarConnections returns the caller's connections.
// GET /calendars
func ListCalendarConnections(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
			Message: "Authentication required",
		})
	}
	var conns []models.CalendarConnection
	if err := db.DB.Where("host_id = ?", hostID).Find(&conns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to list connections",
			Error:   err.Error(),
		})
	}
	return c.JSON(conns)
}

// DisconnectCalendar deactivates a connection. Mappings are kept so a later
// reconnect can resync instead of double-creating events.
// DELETE /calendars/:id
func DisconnectCalendar(c *fiber.Ctx) error {
	hostID, ok := c.Locals("userID").(uint)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
			Message: "Authentication required",
		})
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid connection ID",
			Error:   err.Error(),
		})
	}
	res := db.DB.Model(&models.CalendarConnection{}).
		Where("id = ? AND host_id = ?", id, hostID).
		Update("active", false)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to disconnect",
			Error:   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Message: "Connection not found",
		})
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// CalendarWebhook receives change notifications from a provider and enqueues
// a pull for the named connection. The body is HMAC-signed with the shared
// secret from WEBHOOK_SECRET.
// POST /webhooks/calendar/:provider
func CalendarWebhook(c *fiber.Ctx) error {
	if !webhookLimiter.Allow() {
		return c.Status(fiber.StatusTooManyRequests).JSON(utils.ErrorResponse{
			Message: "Too many notifications",
		})
	}
	if !verifyWebhookSignature(c.Body(), c.Get("X-Webhook-Signature")) {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
			Message: "Invalid webhook signature",
		})
	}

	var payload struct {
		CalendarEmail string `json:"calendar_email"`
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil || payload.CalendarEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Malformed notification",
		})
	}

	var conns []models.CalendarConnection
	err := db.DB.Where("provider = ? AND calendar_email = ? AND active = ?",
		c.Params("provider"), payload.CalendarEmail, true).Find(&conns).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
			Message: "Failed to look up connection",
			Error:   err.Error(),
		})
	}
	for _, conn := range conns {
		if err := calsync.EnqueuePull(c.Context(), TaskQueue, conn.ID); err != nil {
			Log.Error().Err(err).Uint("connection", conn.ID).Msg("webhook pull enqueue failed")
		}
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": len(conns)})
}

func verifyWebhookSignature(body []byte, signature string) bool {
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
