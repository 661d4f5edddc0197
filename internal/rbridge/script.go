package rbridge

import (
	"fmt"
	"strings"
)

// noStateMessage is the exact error text a query script prints when no
// analysis has been persisted yet.
const noStateMessage = "No netmeta result available. Run runnetmeta first."

// rString renders s as a double-quoted R string literal. Only filesystem
// paths we generate ourselves pass through here; caller-supplied values
// (treatment names, study labels) travel in the params JSON file instead,
// never spliced into script text.
func rString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func rBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// wrapScript assembles the common scaffold around an operation body: load
// the required packages quietly, then run the body inside tryCatch so any
// computational failure is printed as {"error": ...} on stdout instead of
// crashing the process. The body's final cat(toJSON(...)) is the only
// stdout write in the whole script; the consumer treats captured stdout as
// one JSON payload.
func wrapScript(packages []string, body string) string {
	var b strings.Builder
	b.WriteString("suppressPackageStartupMessages({\n")
	for _, pkg := range packages {
		fmt.Fprintf(&b, "    library(%s)\n", pkg)
	}
	b.WriteString("})\n")
	b.WriteString("tryCatch({\n")
	b.WriteString(body)
	b.WriteString("\n}, error = function(e) {\n")
	b.WriteString("    cat(toJSON(list(error = conditionMessage(e)), auto_unbox = TRUE))\n")
	b.WriteString("})\n")
	return b.String()
}

// loadStatePreamble guards a query operation: if the state file is absent
// the script reports the no-result error and quits before the operation
// body runs. Otherwise it binds the fitted object to `result`.
func loadStatePreamble(statePath string) string {
	return fmt.Sprintf(`if (!file.exists(%[1]s)) {
    cat(toJSON(list(error = %[2]s), auto_unbox = TRUE))
    quit(save = "no")
}
result <- readRDS(%[1]s)
`, rString(statePath), rString(noStateMessage))
}

// buildRunScript renders the runnetmeta operation. All inputs (contrast
// records, summary measure, reference, model flags) arrive through the
// params JSON file. The reference group is always a string, "" when unset:
// netmeta treats NULL and "" differently and only "" reliably means "no
// reference" (quirk inherited from the package).
func buildRunScript(paramsPath, statePath string) string {
	body := fmt.Sprintf(`    params <- fromJSON(%s, simplifyVector = TRUE)
    data <- params$data

    result <- netmeta(
        TE = data$TE,
        seTE = data$seTE,
        treat1 = data$treat1,
        treat2 = data$treat2,
        studlab = data$study,
        sm = params$sm,
        reference.group = params$reference,
        common = params$common,
        random = params$random
    )

    saveRDS(result, %s)

    output <- list(
        treatments = as.list(result$trts),
        n_studies = result$k,
        n_comparisons = nrow(data),
        sm = result$sm,
        reference = result$reference.group
    )

    if (result$random) {
        output$heterogeneity <- list(
            tau2 = result$tau^2,
            tau = result$tau,
            I2 = result$I2
        )
    }

    pair_estimates <- function(te, lower, upper) {
        n <- length(result$trts)
        comparisons <- list()
        idx <- 1
        for (i in 1:(n - 1)) {
            for (j in (i + 1):n) {
                comparisons[[idx]] <- list(
                    treat1 = result$trts[i],
                    treat2 = result$trts[j],
                    effect = te[i, j],
                    ci_lower = lower[i, j],
                    ci_upper = upper[i, j]
                )
                idx <- idx + 1
            }
        }
        comparisons
    }

    if (result$common) {
        output$fixed_effects <- pair_estimates(result$TE.common, result$lower.common, result$upper.common)
    }
    if (result$random) {
        output$random_effects <- pair_estimates(result$TE.random, result$lower.random, result$upper.random)
    }

    cat(toJSON(output, auto_unbox = TRUE))`,
		rString(paramsPath), rString(statePath))

	return wrapScript([]string{"netmeta", "jsonlite"}, body)
}

// buildGraphScript renders the get_network_graph operation: nodes are the
// session's treatments with 1-based ids, edges are the distinct unordered
// treatment pairs from the original comparison data, counted by study and
// oriented the way the pair first appeared in the data.
func buildGraphScript(statePath string) string {
	body := loadStatePreamble(statePath) + `
    nodes <- lapply(seq_along(result$trts), function(i) {
        list(id = i, label = result$trts[i])
    })

    key <- ifelse(result$treat1 < result$treat2,
                  paste(result$treat1, result$treat2, sep = "\r"),
                  paste(result$treat2, result$treat1, sep = "\r"))
    counts <- table(key)
    first <- which(!duplicated(key))

    edges <- lapply(first, function(i) {
        list(
            from = result$treat1[i],
            to = result$treat2[i],
            n_studies = as.integer(counts[[key[i]]])
        )
    })

    cat(toJSON(list(nodes = nodes, edges = edges), auto_unbox = TRUE))`

	return wrapScript([]string{"netmeta", "jsonlite"}, body)
}

// buildLeagueScript renders the get_league_table operation: the full square
// effect and CI matrices from the chosen model, row-major, with the
// treatment list defining row and column order.
func buildLeagueScript(statePath string, random bool) string {
	body := loadStatePreamble(statePath) + fmt.Sprintf(`
    if (%s) {
        te <- result$TE.random
        lower <- result$lower.random
        upper <- result$upper.random
    } else {
        te <- result$TE.common
        lower <- result$lower.common
        upper <- result$upper.common
    }

    n <- length(result$trts)
    effects_list <- lapply(1:n, function(i) as.list(te[i, ]))
    lower_list <- lapply(1:n, function(i) as.list(lower[i, ]))
    upper_list <- lapply(1:n, function(i) as.list(upper[i, ]))

    cat(toJSON(list(
        treatments = as.list(result$trts),
        effects = effects_list,
        ci_lower = lower_list,
        ci_upper = upper_list,
        sm = result$sm
    ), auto_unbox = TRUE))`, rBool(random))

	return wrapScript([]string{"netmeta", "jsonlite"}, body)
}

// buildRankingScript renders the get_ranking operation. P-scores are
// computed with small.values = "undesirable": the ranking convention is
// fixed so that a higher P-score is uniformly better regardless of the
// summary measure's natural direction. Rank 1 is the maximal P-score; ties
// take R's averaged ranks. All three sequences are reordered together by
// ascending rank.
func buildRankingScript(statePath string, random bool) string {
	body := loadStatePreamble(statePath) + fmt.Sprintf(`
    ranking <- netrank(result, small.values = "undesirable")

    if (%s) {
        p_scores <- ranking$Pscore.random
    } else {
        p_scores <- ranking$Pscore.common
    }

    treatments <- names(p_scores)
    scores <- as.numeric(p_scores)
    ranks <- rank(-scores)

    ord <- order(ranks)

    cat(toJSON(list(
        treatments = as.list(treatments[ord]),
        p_scores = as.list(scores[ord]),
        ranks = as.list(ranks[ord])
    ), auto_unbox = TRUE))`, rBool(random))

	return wrapScript([]string{"netmeta", "jsonlite"}, body)
}

// buildForestScript renders the get_forest_data operation. The comparison
// reference resolves in priority order: caller-supplied (via params file),
// the session's own reference group, the first treatment in the session's
// treatment list.
func buildForestScript(paramsPath, statePath string, random bool) string {
	body := loadStatePreamble(statePath) + fmt.Sprintf(`
    params <- fromJSON(%s, simplifyVector = TRUE)

    ref <- params$reference
    if (is.null(ref) || identical(ref, "")) ref <- result$reference.group
    if (is.null(ref) || identical(ref, "")) ref <- result$trts[1]

    if (%s) {
        te <- result$TE.random
        lower <- result$lower.random
        upper <- result$upper.random
    } else {
        te <- result$TE.common
        lower <- result$lower.common
        upper <- result$upper.common
    }

    ref_idx <- which(result$trts == ref)
    other_trts <- result$trts[-ref_idx]

    comparisons <- lapply(other_trts, function(trt) {
        trt_idx <- which(result$trts == trt)
        list(
            treatment = trt,
            effect = te[trt_idx, ref_idx],
            ci_lower = lower[trt_idx, ref_idx],
            ci_upper = upper[trt_idx, ref_idx]
        )
    })

    cat(toJSON(list(
        reference = ref,
        sm = result$sm,
        comparisons = comparisons
    ), auto_unbox = TRUE))`, rString(paramsPath), rBool(random))

	return wrapScript([]string{"netmeta", "jsonlite"}, body)
}

// buildPairwiseScript renders the arm-to-pairwise conversion using the
// pairwise() helper from the meta package. Binary outcomes contrast
// event/total counts on the odds-ratio scale; continuous outcomes contrast
// mean/sd/n as mean differences. One contrast is emitted for every ordered
// pair of arms within each study.
func buildPairwiseScript(paramsPath string, binary bool) string {
	var args, sm string
	if binary {
		args = "event = data$events, n = data$n"
		sm = SummaryOddsRatio
	} else {
		args = "mean = data$mean, sd = data$sd, n = data$n"
		sm = SummaryMeanDifference
	}

	body := fmt.Sprintf(`    params <- fromJSON(%s, simplifyVector = TRUE)
    data <- params$data

    pw <- pairwise(
        treat = data$treatment,
        %s,
        studlab = data$study,
        sm = %s
    )

    comparisons <- lapply(1:nrow(pw), function(i) {
        list(
            study = pw$studlab[i],
            treat1 = as.character(pw$treat1[i]),
            treat2 = as.character(pw$treat2[i]),
            TE = pw$TE[i],
            seTE = pw$seTE[i]
        )
    })

    cat(toJSON(comparisons, auto_unbox = TRUE))`,
		rString(paramsPath), args, rString(sm))

	return wrapScript([]string{"netmeta", "jsonlite", "meta"}, body)
}
