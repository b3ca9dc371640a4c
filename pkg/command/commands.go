package command

import (
	"sync"
	"time"
)

type handler func(p *Processor, ts time.Time, args []string) error

type command struct {
	args    int
	handler handler
}

var (
	commandsOnce sync.Once
	commandTable map[string]command
)

// commands returns the verb table, building it on first use.
func commands() map[string]command {
	commandsOnce.Do(func() {
		commandTable = map[string]command{
			"PROCESS_HOST_CHECK_RESULT":    {3, processHostCheckResult},
			"PROCESS_SERVICE_CHECK_RESULT": {4, processServiceCheckResult},

			"SCHEDULE_HOST_CHECK":             {2, scheduleHostCheck(false)},
			"SCHEDULE_FORCED_HOST_CHECK":      {2, scheduleHostCheck(true)},
			"SCHEDULE_SVC_CHECK":              {3, scheduleSvcCheck(false)},
			"SCHEDULE_FORCED_SVC_CHECK":       {3, scheduleSvcCheck(true)},
			"SCHEDULE_HOST_SVC_CHECKS":        {2, scheduleHostSvcChecks(false)},
			"SCHEDULE_FORCED_HOST_SVC_CHECKS": {2, scheduleHostSvcChecks(true)},

			"ENABLE_HOST_CHECK":               {1, forHost(setActiveChecks(true))},
			"DISABLE_HOST_CHECK":              {1, forHost(setActiveChecks(false))},
			"ENABLE_SVC_CHECK":                {2, forService(setActiveChecks(true))},
			"DISABLE_SVC_CHECK":               {2, forService(setActiveChecks(false))},
			"ENABLE_HOST_SVC_CHECKS":          {1, forHostServices(setActiveChecks(true))},
			"DISABLE_HOST_SVC_CHECKS":         {1, forHostServices(setActiveChecks(false))},
			"ENABLE_HOSTGROUP_SVC_CHECKS":     {1, forHostgroupServices(setActiveChecks(true))},
			"DISABLE_HOSTGROUP_SVC_CHECKS":    {1, forHostgroupServices(setActiveChecks(false))},
			"ENABLE_SERVICEGROUP_SVC_CHECKS":  {1, forServicegroupServices(setActiveChecks(true))},
			"DISABLE_SERVICEGROUP_SVC_CHECKS": {1, forServicegroupServices(setActiveChecks(false))},

			"ENABLE_PASSIVE_HOST_CHECKS":              {1, forHost(setPassiveChecks(true))},
			"DISABLE_PASSIVE_HOST_CHECKS":             {1, forHost(setPassiveChecks(false))},
			"ENABLE_PASSIVE_SVC_CHECKS":               {2, forService(setPassiveChecks(true))},
			"DISABLE_PASSIVE_SVC_CHECKS":              {2, forService(setPassiveChecks(false))},
			"ENABLE_SERVICEGROUP_PASSIVE_SVC_CHECKS":  {1, forServicegroupServices(setPassiveChecks(true))},
			"DISABLE_SERVICEGROUP_PASSIVE_SVC_CHECKS": {1, forServicegroupServices(setPassiveChecks(false))},
			"ENABLE_HOSTGROUP_PASSIVE_SVC_CHECKS":     {1, forHostgroupServices(setPassiveChecks(true))},
			"DISABLE_HOSTGROUP_PASSIVE_SVC_CHECKS":    {1, forHostgroupServices(setPassiveChecks(false))},

			"ACKNOWLEDGE_SVC_PROBLEM":         {7, acknowledgeSvcProblem(false)},
			"ACKNOWLEDGE_SVC_PROBLEM_EXPIRE":  {8, acknowledgeSvcProblem(true)},
			"REMOVE_SVC_ACKNOWLEDGEMENT":      {2, removeSvcAcknowledgement},
			"ACKNOWLEDGE_HOST_PROBLEM":        {6, acknowledgeHostProblem(false)},
			"ACKNOWLEDGE_HOST_PROBLEM_EXPIRE": {7, acknowledgeHostProblem(true)},
			"REMOVE_HOST_ACKNOWLEDGEMENT":     {1, removeHostAcknowledgement},

			"SCHEDULE_SVC_DOWNTIME":               {9, scheduleSvcDowntime},
			"SCHEDULE_HOST_DOWNTIME":              {8, scheduleDowntimes(hostTargets)},
			"SCHEDULE_HOST_SVC_DOWNTIME":          {8, scheduleDowntimes(hostAndServiceTargets)},
			"SCHEDULE_HOSTGROUP_HOST_DOWNTIME":    {8, scheduleDowntimes(hostgroupHostTargets)},
			"SCHEDULE_HOSTGROUP_SVC_DOWNTIME":     {8, scheduleDowntimes(hostgroupServiceTargets)},
			"SCHEDULE_SERVICEGROUP_HOST_DOWNTIME": {8, scheduleDowntimes(servicegroupHostTargets)},
			"SCHEDULE_SERVICEGROUP_SVC_DOWNTIME":  {8, scheduleDowntimes(servicegroupServiceTargets)},
			"DEL_SVC_DOWNTIME":                    {1, delDowntime},
			"DEL_HOST_DOWNTIME":                   {1, delDowntime},

			"ADD_HOST_COMMENT":      {4, addHostComment},
			"ADD_SVC_COMMENT":       {5, addSvcComment},
			"DEL_HOST_COMMENT":      {1, delComment},
			"DEL_SVC_COMMENT":       {1, delComment},
			"DEL_ALL_HOST_COMMENTS": {1, forHost(delAllComments)},
			"DEL_ALL_SVC_COMMENTS":  {2, forService(delAllComments)},

			"ENABLE_HOST_NOTIFICATIONS":     {1, forHost(setNotifications(true))},
			"DISABLE_HOST_NOTIFICATIONS":    {1, forHost(setNotifications(false))},
			"ENABLE_SVC_NOTIFICATIONS":      {2, forService(setNotifications(true))},
			"DISABLE_SVC_NOTIFICATIONS":     {2, forService(setNotifications(false))},
			"SEND_CUSTOM_HOST_NOTIFICATION": {4, sendCustomHostNotification},
			"SEND_CUSTOM_SVC_NOTIFICATION":  {5, sendCustomSvcNotification},
			"DELAY_HOST_NOTIFICATION":       {2, delayHostNotification},
			"DELAY_SVC_NOTIFICATION":        {3, delaySvcNotification},

			"SHUTDOWN_PROCESS": {0, shutdownProcess},
			"PROCESS_FILE":     {2, processFile},
		}
	})

	return commandTable
}
