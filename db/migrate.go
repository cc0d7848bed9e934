package db

import (
	"log"

	"github.com/clearbook/scheduling-engine/models"
)

func Migrate() {
	// Initialize DB connection
	Init()

	// Run AutoMigrate only when explicitly called
	err := DB.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.AvailabilityProfile{},
		&models.WeeklyHour{},
		&models.DateException{},
		&models.Holiday{},
		&models.AppointmentType{},
		&models.HostWeight{},
		&models.BookingLink{},
		&models.Appointment{},
		&models.AppointmentAudit{},
		&models.RoutingCounter{},
		&models.CalendarConnection{},
		&models.ExternalEventMapping{},
		&models.SyncAttemptLog{},
		&models.SyncPushRetry{},
		&models.MeetingPoll{},
		&models.PollSlot{},
		&models.PollVote{},
		&models.MeetingWorkflow{},
		&models.WorkflowExecution{},
	)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	log.Println("Migrations applied")
}
