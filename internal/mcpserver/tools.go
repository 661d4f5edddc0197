package mcpserver

// toolsList returns the seven tool descriptors advertised via tools/list.
// Schemas mirror the bridge operation arguments one to one.
func toolsList() []Tool {
	pairwiseItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"study":  map[string]any{"type": "string", "description": "Study identifier"},
			"treat1": map[string]any{"type": "string", "description": "First treatment"},
			"treat2": map[string]any{"type": "string", "description": "Second treatment"},
			"TE":     map[string]any{"type": "number", "description": "Treatment effect (log scale for ratio measures)"},
			"seTE":   map[string]any{"type": "number", "description": "Standard error of the treatment effect"},
		},
		"required": []string{"study", "treat1", "treat2", "TE", "seTE"},
	}

	armItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"study":     map[string]any{"type": "string", "description": "Study identifier"},
			"treatment": map[string]any{"type": "string", "description": "Treatment name"},
			"events":    map[string]any{"type": "integer", "description": "Number of events (binary outcomes)"},
			"n":         map[string]any{"type": "integer", "description": "Sample size"},
			"mean":      map[string]any{"type": "number", "description": "Mean outcome (continuous outcomes)"},
			"sd":        map[string]any{"type": "number", "description": "Standard deviation (continuous outcomes)"},
		},
		"required": []string{"study", "treatment", "n"},
	}

	randomProp := map[string]any{
		"type":        "boolean",
		"description": "Use the random-effects model (true) or the common-effect model (false)",
		"default":     true,
	}

	return []Tool{
		{
			Name: "runnetmeta",
			Description: "Run a frequentist network meta-analysis over pairwise contrast data " +
				"using the R netmeta package. Persists the fitted analysis for the query tools.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"data": map[string]any{
						"type":        "array",
						"description": "Pairwise comparisons, one per study and treatment pair",
						"items":       pairwiseItem,
					},
					"sm": map[string]any{
						"type":        "string",
						"description": "Summary measure: OR, RR, RD, MD, or SMD",
						"enum":        []string{"OR", "RR", "RD", "MD", "SMD"},
						"default":     "OR",
					},
					"reference": map[string]any{
						"type":        "string",
						"description": "Reference treatment (optional)",
					},
					"comb_fixed": map[string]any{
						"type":        "boolean",
						"description": "Compute the common-effect (fixed) model",
						"default":     true,
					},
					"comb_random": map[string]any{
						"type":        "boolean",
						"description": "Compute the random-effects model",
						"default":     true,
					},
				},
				"required": []string{"data"},
			},
		},
		{
			Name: "get_network_graph",
			Description: "Get the network structure of the last analysis: treatment nodes " +
				"and edges weighted by the number of contributing studies.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name: "get_league_table",
			Description: "Get the league table of the last analysis: square matrices of all " +
				"pairwise effects with confidence bounds.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"random": randomProp,
				},
			},
		},
		{
			Name: "get_ranking",
			Description: "Get P-score treatment rankings from the last analysis. " +
				"Rank 1 is the highest P-score (best treatment).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"random": randomProp,
				},
			},
		},
		{
			Name: "get_forest_data",
			Description: "Get forest-plot data from the last analysis: each treatment's effect " +
				"and confidence interval against a reference treatment.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reference": map[string]any{
						"type":        "string",
						"description": "Reference treatment (defaults to the analysis reference, then the first treatment)",
					},
					"random": randomProp,
				},
			},
		},
		{
			Name: "pairwise_to_netmeta",
			Description: "Convert arm-level data to pairwise contrasts, producing every " +
				"head-to-head comparison within each study.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"data": map[string]any{
						"type":        "array",
						"description": "Study arms",
						"items":       armItem,
					},
					"outcome_type": map[string]any{
						"type":        "string",
						"description": "binary (events/n, odds ratios) or continuous (mean/sd/n, mean differences)",
						"enum":        []string{"binary", "continuous"},
						"default":     "binary",
					},
				},
				"required": []string{"data"},
			},
		},
		{
			Name: "csv_to_json",
			Description: "Convert CSV content into records for runnetmeta or pairwise_to_netmeta. " +
				"Formats: pairwise (study,treat1,treat2,TE,seTE), arm_binary (study,treatment,events,n), " +
				"arm_continuous (study,treatment,mean,sd,n).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"csv_content": map[string]any{
						"type":        "string",
						"description": "CSV text with a header row",
					},
					"data_format": map[string]any{
						"type":        "string",
						"enum":        []string{"pairwise", "arm_binary", "arm_continuous"},
						"default":     "pairwise",
					},
				},
				"required": []string{"csv_content"},
			},
		},
	}
}
