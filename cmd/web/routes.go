package main

import (
	"net/http"

	"github.com/myrjola/lockedin/internal/errors"
)

func (app *application) routes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(secureHeaders(app.crossOriginProtection(
				commonContext(app.timeout(next)))))
		}
		noAuth = func(next http.Handler) http.Handler {
			return app.recoverPanic(shared(next))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
				app.webAuthnHandler.AuthenticateMiddleware(shared(next)))))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
		mustSessionAPI = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticateAPI(next))
		}
	)

	mux.Handle("POST /workouts/today", mustSession(http.HandlerFunc(app.workoutTodayPOST)))
	mux.Handle("POST /workouts/retroactive", mustSession(http.HandlerFunc(app.workoutRetroactivePOST)))
	mux.Handle("POST /workouts/{id}/delete", mustSession(http.HandlerFunc(app.workoutDeletePOST)))
	mux.Handle("GET /milestones", mustSession(http.HandlerFunc(app.milestonesGET)))
	mux.Handle("POST /focus", mustSession(http.HandlerFunc(app.focusPOST)))
	mux.Handle("POST /modules", mustSession(http.HandlerFunc(app.moduleAddPOST)))
	mux.Handle("POST /modules/{id}", mustSession(http.HandlerFunc(app.moduleUpdatePOST)))
	mux.Handle("POST /modules/{id}/delete", mustSession(http.HandlerFunc(app.moduleDeletePOST)))

	mux.Handle("GET /preferences", mustSession(http.HandlerFunc(app.preferencesGET)))
	mux.Handle("POST /preferences", mustSession(http.HandlerFunc(app.preferencesPOST)))
	mux.Handle("POST /preferences/profile", mustSession(http.HandlerFunc(app.profilePOST)))
	mux.Handle("POST /preferences/reset-progress", mustSession(http.HandlerFunc(app.resetProgressPOST)))
	mux.Handle("GET /preferences/export-data", mustSession(http.HandlerFunc(app.exportUserDataGET)))

	mux.Handle("GET /notifications", mustSession(http.HandlerFunc(app.notificationsGET)))
	mux.Handle("POST /notifications/{id}/dismiss", mustSession(http.HandlerFunc(app.notificationDismissPOST)))
	mux.Handle("POST /notifications/dismiss-all", mustSession(http.HandlerFunc(app.notificationsDismissAllPOST)))

	mux.Handle("POST /api/workouts", mustSessionAPI(http.HandlerFunc(app.apiLogToday)))
	mux.Handle("POST /api/workouts/retroactive", mustSessionAPI(http.HandlerFunc(app.apiLogRetroactive)))
	mux.Handle("DELETE /api/workouts/{id}", mustSessionAPI(http.HandlerFunc(app.apiDeleteWorkout)))
	mux.Handle("GET /api/stats", mustSessionAPI(http.HandlerFunc(app.apiStats)))
	mux.Handle("GET /api/milestones", mustSessionAPI(http.HandlerFunc(app.apiMilestones)))
	mux.Handle("GET /api/modules", mustSessionAPI(http.HandlerFunc(app.apiModules)))
	mux.Handle("POST /api/modules", mustSessionAPI(http.HandlerFunc(app.apiAddModule)))
	mux.Handle("DELETE /api/modules/{id}", mustSessionAPI(http.HandlerFunc(app.apiDeleteModule)))

	mux.Handle("POST /api/registration/start", session(http.HandlerFunc(app.beginRegistration)))
	mux.Handle("POST /api/registration/finish", session(http.HandlerFunc(app.finishRegistration)))
	mux.Handle("POST /api/login/start", session(http.HandlerFunc(app.beginLogin)))
	mux.Handle("POST /api/login/finish", session(http.HandlerFunc(app.finishLogin)))
	mux.Handle("POST /api/logout", session(http.HandlerFunc(app.logout)))
	mux.Handle("GET /api/healthy", session(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", noAuth(http.HandlerFunc(app.testTimeout)))
	mux.Handle("POST /api/csp-violation", noAuth(http.HandlerFunc(app.cspViolation)))

	mux.Handle("GET /{$}", session(http.HandlerFunc(app.home)))

	fileServerHandler, err := app.fileServerHandler()
	if err != nil {
		return nil, errors.Wrap(err, "file server handler")
	}
	mux.Handle("/", fileServerHandler)

	return mux, nil
}
