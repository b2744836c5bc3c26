// Package scheduler runs periodic jobs inside the service process.
//
// Jobs are registered with a Schedule (DailyAt, HourlyAt, EveryInterval or
// ParseDaily("02:00")) and executed by Start, which polls at a configurable
// check interval. Failures are logged and never stop the scheduler. When a
// Locker is configured each occurrence is claimed with a lease so that only
// one replica executes it.
//
//	s := scheduler.New(scheduler.WithLogger(log), scheduler.WithLocation(loc))
//	_ = s.Register("expire-trials", scheduler.DailyAt(2, 0), expirationScan.Run)
//	go s.Start(ctx)
package scheduler
