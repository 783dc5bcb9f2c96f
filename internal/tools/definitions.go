package tools

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Definitions returns the tool schemas presented to the completion
// endpoint. The catalog is stable across a multi-round exchange.
func Definitions() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolSearchLoads,
				Description: anthropic.String("Search loads by optional status, origin, or destination filters. Returns the most recent matches."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"status": map[string]interface{}{
							"type":        "string",
							"description": "Filter by load status: available, dispatched, in_transit, delivered, problem",
						},
						"origin": map[string]interface{}{
							"type":        "string",
							"description": "Filter by origin city (partial match)",
						},
						"destination": map[string]interface{}{
							"type":        "string",
							"description": "Filter by destination city (partial match)",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolSearchDrivers,
				Description: anthropic.String("Search drivers by optional status or location filters."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"status": map[string]interface{}{
							"type":        "string",
							"description": "Filter by driver status: available, assigned, inactive",
						},
						"location": map[string]interface{}{
							"type":        "string",
							"description": "Filter by current location (partial match)",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolSearchDriversByHOS,
				Description: anthropic.String("Find drivers with enough remaining hours of service for a pickup, ranked by fitness."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"pickup_time": map[string]interface{}{
							"type":        "string",
							"description": "Pickup time in RFC 3339 format",
						},
						"min_drive_minutes": map[string]interface{}{
							"type":        "integer",
							"description": "Minimum remaining drive minutes required",
						},
						"origin_city": map[string]interface{}{
							"type":        "string",
							"description": "Pickup city, used for proximity ranking",
						},
					},
					Required: []string{"pickup_time"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolCreateLoad,
				Description: anthropic.String("Create a new load. The reference code is generated automatically and the load starts as available."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"origin": map[string]interface{}{
							"type":        "string",
							"description": "Origin city and state, e.g. 'Sacramento, CA'",
						},
						"destination": map[string]interface{}{
							"type":        "string",
							"description": "Destination city and state",
						},
						"rate": map[string]interface{}{
							"type":        "number",
							"description": "Agreed rate in dollars",
						},
						"pickup_date": map[string]interface{}{
							"type":        "string",
							"description": "Pickup date, YYYY-MM-DD",
						},
						"delivery_date": map[string]interface{}{
							"type":        "string",
							"description": "Delivery date, YYYY-MM-DD",
						},
						"shipper": map[string]interface{}{
							"type":        "string",
							"description": "Shipper name (optional)",
						},
						"equipment": map[string]interface{}{
							"type":        "string",
							"description": "Equipment type (optional, defaults to dry_van)",
						},
						"customer_ref": map[string]interface{}{
							"type":        "string",
							"description": "Customer reference number (optional)",
						},
						"commodity": map[string]interface{}{
							"type":        "string",
							"description": "Commodity description (optional)",
						},
					},
					Required: []string{"origin", "destination", "rate"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolUpdateLoad,
				Description: anthropic.String("Update mutable fields on an existing load (rate, dates, cities). Lifecycle changes go through their dedicated tools."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference code or fragment",
						},
						"updates": map[string]interface{}{
							"type":        "object",
							"description": "Field updates: origin, destination, rate, pickup_date, delivery_date, shipper, equipment, customer_ref, commodity",
						},
					},
					Required: []string{"load_reference", "updates"},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolAssignDriver,
				Description: anthropic.String("Assign a driver to a load. Fails if the driver already has an active assignment or the load already has a driver."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"driver": map[string]interface{}{
							"type":        "string",
							"description": "Driver name or id. Omit to use the driver from the current conversation.",
						},
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolMarkInTransit,
				Description: anthropic.String("Mark a dispatched load as picked up and rolling (in transit)."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolMarkDelivered,
				Description: anthropic.String("Mark a load delivered. POD status becomes pending; the driver stays assigned until the POD is confirmed."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolConfirmPOD,
				Description: anthropic.String("Confirm the proof of delivery was received. Frees the driver and closes the assignment. Safe to repeat."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolReleaseDriver,
				Description: anthropic.String("Free a load's driver before the POD arrives. POD status stays pending."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolMarkProblem,
				Description: anthropic.String("Flag a load as having a problem, with a reason. Call without a reason to record which load is affected while you ask the user what went wrong. The load can return to its prior status once resolved."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"load_reference": map[string]interface{}{
							"type":        "string",
							"description": "Load reference or fragment. Omit to use the load from the current conversation.",
						},
						"reason": map[string]interface{}{
							"type":        "string",
							"description": "What went wrong. Omit only when the user has not said yet.",
						},
					},
				},
			},
		},
		{
			OfTool: &anthropic.ToolParam{
				Name:        ToolGetBoardStatus,
				Description: anthropic.String("Get a snapshot of the whole dispatch board: loads, statuses, and current drivers."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"status": map[string]interface{}{
							"type":        "string",
							"description": "Filter by load status",
						},
						"assigned_only": map[string]interface{}{
							"type":        "boolean",
							"description": "Only loads with a driver assigned",
						},
						"driver_name": map[string]interface{}{
							"type":        "string",
							"description": "Only loads assigned to this driver",
						},
					},
				},
			},
		},
	}
}
