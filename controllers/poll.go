package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearbook/scheduling-engine/polls"
	"github.com/clearbook/scheduling-engine/utils"
)

// CreatePollRequest is the staff payload for opening a meeting poll.
type CreatePollRequest struct {
	AppointmentTypeID uint                 `json:"appointment_type_id"`
	HostID            uint                 `json:"host_id"`
	Title             string               `json:"title"`
	Slots             []polls.ProposedSlot `json:"slots"`
	Deadline          time.Time            `json:"deadline"`
}

// CreatePoll opens a meeting poll over a set of proposed slots. Staff only.
// POST /polls
func CreatePoll(c *fiber.Ctx) error {
	var req CreatePollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}

	firmID, ok := c.Locals("firmID").(uint)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
			Message: "Firm context missing",
		})
	}
	hostID := req.HostID
	if hostID == 0 {
		if id, ok := c.Locals("userID").(uint); ok {
			hostID = id
		}
	}

	poll, err := PollSvc.CreatePoll(firmID, req.AppointmentTypeID, hostID, req.Title, req.Slots, req.Deadline)
	if err != nil {
		return utils.FailJSON(c, "Failed to create poll", err)
	}
	return c.Status(fiber.StatusCreated).JSON(poll)
}

// GetPoll returns a poll with its slots, votes and tally.
// GET /polls/:id
func GetPoll(c *fiber.Ctx) error {
	id, err := pollID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid poll ID",
			Error:   err.Error(),
		})
	}
	poll, err := PollSvc.Get(id)
	if err != nil {
		return utils.FailJSON(c, "Poll not found", err)
	}
	return c.JSON(fiber.Map{
		"poll":  poll,
		"tally": polls.Tally(poll.Slots),
	})
}

// VoteRequest carries one invitee's votes across the poll's slots.
type VoteRequest struct {
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Votes []polls.Vote `json:"votes"`
}

// CastVote records an invitee's choices. Re-voting overwrites per slot.
// POST /polls/:id/votes
func CastVote(c *fiber.Ctx) error {
	id, err := pollID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid poll ID",
			Error:   err.Error(),
		})
	}
	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Voter email is required",
		})
	}

	if err := PollSvc.CastVote(id, req.Name, req.Email, req.Votes); err != nil {
		return utils.FailJSON(c, "Failed to record votes", err)
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// ResolvePollRequest names the booking link used to book the winning slot.
type ResolvePollRequest struct {
	Link string `json:"link"`
}

// ResolvePoll closes the poll and books its winning slot. Staff only.
// POST /polls/:id/resolve
func ResolvePoll(c *fiber.Ctx) error {
	id, err := pollID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid poll ID",
			Error:   err.Error(),
		})
	}
	var req ResolvePollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Failed to parse request body",
			Error:   err.Error(),
		})
	}

	poll, err := PollSvc.Resolve(c.Context(), id, req.Link)
	if err != nil {
		return utils.FailJSON(c, "Failed to resolve poll", err)
	}
	return c.JSON(poll)
}

func pollID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
