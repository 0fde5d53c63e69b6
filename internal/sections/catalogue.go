package sections

func catalogue() []Section {
	return []Section{
		{Number: 1, Title: "Project Overview", Parts: []Part{{
			Key: "1", Section: 1, Title: "Project Overview", Table: "pqp.section1",
			Labels: []string{"id", "Project Description", "Location", "Client Organisation",
				"Primary Contact Name", "VAT Number", "Designation", "Invoice Address"},
			ColumnMap: map[string]string{
				"project_description":        "Project Description",
				"project_location":           "Location",
				"client_organisation":        "Client Organisation",
				"primary_contact_name":       "Primary Contact Name",
				"vat_number":                 "VAT Number",
				"contact_person_designation": "Designation",
				"invoice_address":            "Invoice Address",
			},
			Keywords: []string{"overview", "client"},
		}}},

		{Number: 2, Title: "Project Team", Parts: []Part{{
			Key: "2", Section: 2, Title: "Project Team", Table: "pqp.section2",
			Labels: []string{"id", "Role", "Req'd", "Organisation", "Representative Name", "Email", "Cell",
				"Subconsultant to HN?", "Subconsultant Agreement?", "CPG Partner?", "CPG %", "Comments"},
			ColumnMap: map[string]string{
				"role":                     "Role",
				"reqd":                     "Req'd",
				"organisation_responsible": "Organisation",
				"representative_name":      "Representative Name",
				"email":                    "Email",
				"cell":                     "Cell",
				"subconsultant_to_hn":      "Subconsultant to HN?",
				"subconsultant_agreement":  "Subconsultant Agreement?",
				"cpg_partner":              "CPG Partner?",
				"cpg_percent":              "CPG %",
				"comments":                 "Comments",
			},
			Keywords: []string{"team", "member", "role"},
		}}},

		{Number: 3, Title: "Appointment & Milestones", Parts: []Part{
			{
				Key: "31", Section: 3, Title: "Appointment Checklist", Table: "pqp.section31",
				Labels: []string{"id", "Item", "In Place", "Date", "Filing Location", "Notes"},
				ColumnMap: map[string]string{
					"item":            "Item",
					"in_place":        "In Place",
					"date_val":        "Date",
					"filing_location": "Filing Location",
					"notes":           "Notes",
				},
				Keywords: []string{"appointment", "inplace", "filing"},
			},
			{
				Key: "32", Section: 3, Title: "Appointment Review", Table: "pqp.section32",
				Labels: []string{"id", "Appointment Review Date", "Appointment Reviewer", "Review Comments",
					"HN Roles", "Appointment Date", "Expected Duration", "Original End Date",
					"Contract/Ref No", "Comments"},
				ColumnMap: map[string]string{
					"appointment_review_date": "Appointment Review Date",
					"appointment_reviewer":    "Appointment Reviewer",
					"review_comments":         "Review Comments",
					"appointment_roles":       "HN Roles",
					"appointment_date":        "Appointment Date",
					"expected_duration":       "Expected Duration",
					"original_end_date":       "Original End Date",
					"contract_ref_no":         "Contract/Ref No",
					"general_comments":        "Comments",
				},
				Keywords: []string{"appointment", "review"},
			},
			{
				Key: "33", Section: 3, Title: "Milestones & Deliverables", Table: "pqp.section33",
				Labels: []string{"id", "ECSA Project Stage", "Date Completed", "Description of Deliverable",
					"Deliverable?", "Deliverable Accepted?", "Employer Approved?", "Comments"},
				ColumnMap: map[string]string{
					"ecsa_project_stage":         "ECSA Project Stage",
					"date_completed":             "Date Completed",
					"description_of_deliverable": "Description of Deliverable",
					"deliverable":                "Deliverable?",
					"deliverable_accepted":       "Deliverable Accepted?",
					"employer_approved":          "Employer Approved?",
					"comments":                   "Comments",
				},
				Keywords: []string{"milestone", "deliverable", "ecsa"},
			},
		}},

		{Number: 4, Title: "Planning & Design", Parts: []Part{
			{
				Key: "41", Section: 4, Title: "Planning & Design", Table: "pqp.section41",
				Labels: []string{"id", "Design Criteria/Requirements", "Planning & Design Risks",
					"Project-specific Risks", "Mitigating Measures", "Record of Action Taken",
					"Scope Register Location", "Design Notes"},
				ColumnMap: map[string]string{
					"design_criteria_requirements": "Design Criteria/Requirements",
					"planning_design_risks":        "Planning & Design Risks",
					"project_specific_risks":       "Project-specific Risks",
					"mitigating_measures":          "Mitigating Measures",
					"record_of_action_taken":       "Record of Action Taken",
					"scope_register_location":      "Scope Register Location",
					"design_notes":                 "Design Notes",
				},
				Keywords: []string{"planning", "design"},
			},
			{
				Key: "42", Section: 4, Title: "Design Approvals", Table: "pqp.section42",
				Labels: []string{"id", "Approval Type", "Date Approved", "Status/Reference No.",
					"Deliverable?", "Deliverable Accepted?", "Approved?"},
				ColumnMap: map[string]string{
					"approval_type":        "Approval Type",
					"date_approved":        "Date Approved",
					"status_reference_no":  "Status/Reference No.",
					"deliverable":          "Deliverable?",
					"deliverable_accepted": "Deliverable Accepted?",
					"approved":             "Approved?",
				},
				Keywords: []string{"approval", "design"},
			},
		}},

		{Number: 5, Title: "Documentation & Tender", Parts: []Part{
			{
				Key: "51", Section: 5, Title: "Documentation & Tender", Table: "pqp.section51",
				Labels: []string{"id", "Client Tender Doc Requirements", "Form of Contract", "Standard Specs",
					"Client Template Date", "Tender Phase Notes"},
				ColumnMap: map[string]string{
					"client_tender_doc_requirements": "Client Tender Doc Requirements",
					"form_of_contract":               "Form of Contract",
					"standard_specs":                 "Standard Specs",
					"client_template_date":           "Client Template Date",
					"tender_phase_notes":             "Tender Phase Notes",
				},
				Keywords: []string{"documentation", "tender", "procurement"},
			},
			{
				Key: "52", Section: 5, Title: "Documentation Risks", Table: "pqp.section52",
				Labels: []string{"id", "Documentation Risks", "Project-specific Risks", "Mitigating Measures",
					"Record of Action Taken"},
				ColumnMap: map[string]string{
					"documentation_risks":    "Documentation Risks",
					"project_specific_risks": "Project-specific Risks",
					"mitigating_measures":    "Mitigating Measures",
					"record_of_action_taken": "Record of Action Taken",
				},
				Keywords: []string{"documentation", "risk"},
			},
		}},

		{Number: 6, Title: "Works & Handover", Parts: []Part{
			{
				Key: "61", Section: 6, Title: "Works Contract", Table: "pqp.section61",
				Labels: []string{"id", "Construction Description", "Contractor Organisation", "Contract Number",
					"Award Value (incl. VAT)", "Award Date", "Original Order No.", "Original Date Order",
					"Inception Meeting Date", "Final Payment Cert Date", "Final Value (incl VAT)", "Milestones",
					"Commencement of Works", "Date of EA's Instruction", "Where Instruction is recorded"},
				ColumnMap: map[string]string{
					"construction_description":   "Construction Description",
					"contractor_organisation":    "Contractor Organisation",
					"contract_number":            "Contract Number",
					"award_value_incl_vat":       "Award Value (incl. VAT)",
					"award_date":                 "Award Date",
					"original_order_no":          "Original Order No.",
					"original_date_order":        "Original Date Order",
					"inception_meeting_date":     "Inception Meeting Date",
					"final_payment_cert_date":    "Final Payment Cert Date",
					"final_value_incl_vat":       "Final Value (incl VAT)",
					"commencement_of_works":      "Commencement of Works",
					"date_of_ea_instruction":     "Date of EA's Instruction",
					"where_instruction_recorded": "Where Instruction is recorded",
				},
				Keywords: []string{"works", "construction", "contract"},
			},
			{
				Key: "62", Section: 6, Title: "Handover & Site", Table: "pqp.section62",
				Labels: []string{"id", "Employer's Agent", "Employer's Agent Representative",
					"Construction Manager (Site Agent)", "Record of Appointment Links", "Responsibilities Links",
					"Construction Phase Risks", "Project-specific Risks", "Mitigating Measures",
					"Record of Action Taken", "Construction Phase Notes"},
				ColumnMap: map[string]string{
					"employers_agent":                "Employer's Agent",
					"employers_agent_representative": "Employer's Agent Representative",
					"construction_manager":           "Construction Manager (Site Agent)",
					"record_of_appointment_links":    "Record of Appointment Links",
					"responsibilities_links":         "Responsibilities Links",
					"construction_phase_risks":       "Construction Phase Risks",
					"project_specific_risks":         "Project-specific Risks",
					"mitigating_measures":            "Mitigating Measures",
					"record_of_action_taken":         "Record of Action Taken",
					"construction_phase_notes":       "Construction Phase Notes",
				},
				Keywords: []string{"handover", "construction", "site"},
			},
		}},

		{Number: 7, Title: "Additional Services", Parts: []Part{{
			Key: "7", Section: 7, Title: "Additional Services", Table: "pqp.section71",
			Labels: []string{"id", "Additional Services Done", "Project-specific Risks", "Mitigating Measures",
				"Record of Action Taken", "Notes"},
			ColumnMap: map[string]string{
				"additional_services_done": "Additional Services Done",
				"notes":                    "Notes",
			},
			Keywords: []string{"additional", "services"},
		}}},

		{Number: 8, Title: "Close-Out & Feedback", Parts: []Part{{
			Key: "8", Section: 8, Title: "Close-Out & Feedback", Table: "pqp.section8",
			Labels: []string{"id", "Date CSQ Submitted", "Date CSQ Received", "CSQ Rating", "Location",
				"Comments on Feedback", "Actual Close-Out Date", "General Remarks/Lessons Learned"},
			ColumnMap: map[string]string{
				"date_csq_submitted":              "Date CSQ Submitted",
				"date_csq_received":               "Date CSQ Received",
				"csq_rating":                      "CSQ Rating",
				"location":                        "Location",
				"comments_on_feedback":            "Comments on Feedback",
				"actual_close_out_date":           "Actual Close-Out Date",
				"general_remarks_lessons_learned": "General Remarks/Lessons Learned",
			},
			Keywords: []string{"closeout", "feedback", "csq"},
		}}},

		{Number: 9, Title: "Scope Register", Parts: []Part{{
			Key: "9", Section: 9, Title: "Scope Register",
			Labels:   []string{"id", "Scope Item", "Category", "Owner", "Status", "Due Date", "Notes"},
			Keywords: []string{"scope", "register"},
		}}},

		{Number: 10, Title: "Risk Register", Parts: []Part{
			{
				Key: "101", Section: 10, Title: "Risk Register", Table: "pqp.section101",
				Labels: []string{"id", "Risk Code", "Title", "Description", "Cause", "Consequence", "Category",
					"Likelihood", "Impact", "Treatment", "Owner", "Due Date", "Status"},
				ColumnMap: map[string]string{
					"risk_code":   "Risk Code",
					"title":       "Title",
					"description": "Description",
					"cause":       "Cause",
					"consequence": "Consequence",
					"category":    "Category",
					"likelihood":  "Likelihood",
					"impact":      "Impact",
					"treatment":   "Treatment",
					"owner":       "Owner",
					"due_date":    "Due Date",
					"status":      "Status",
				},
				Keywords: []string{"risk", "register"},
			},
			riskChecklist("102", "Concept & Design Risks", "pqp.risk_concept", "concept"),
			riskChecklist("103", "Documentation Risks", "pqp.risk_docs", "docs"),
			riskChecklist("104", "Works Risks", "pqp.risk_works", "works"),
		}},
	}
}

func riskChecklist(key, title, table, keyword string) Part {
	return Part{
		Key: key, Section: 10, Title: title, Table: table,
		Labels: []string{"id", "Category", "Risk", "Mitigating Measure", "Other Evidence",
			"Conforming Activity", "Remarks", "Status"},
		ColumnMap: map[string]string{
			"category":            "Category",
			"risk":                "Risk",
			"mitigating_measure":  "Mitigating Measure",
			"other_evidence":      "Other Evidence",
			"conforming_activity": "Conforming Activity",
			"remarks":             "Remarks",
			"status":              "Status",
		},
		Keywords: []string{"risk", keyword},
	}
}

// Synonyms lists alternative native column names per label, consulted by
// the fuzzy phase before token scoring.
var Synonyms = map[string][]string{
	"Project Description":               {"description", "project_name", "name"},
	"Location":                          {"location", "site", "project_location"},
	"Client Organisation":               {"client", "client_name", "organisation", "organization"},
	"Primary Contact Name":              {"contact_name", "primary_contact", "contact_person"},
	"VAT Number":                        {"vat", "vat_no"},
	"Designation":                       {"designation", "title"},
	"Invoice Address":                   {"invoice_address", "billing_address", "address"},
	"Role":                              {"role", "position"},
	"Req'd":                             {"required", "reqd"},
	"Organisation":                      {"organisation", "organization", "company"},
	"Representative Name":               {"representative", "rep_name", "name"},
	"Email":                             {"email", "e_mail", "mail"},
	"Cell":                              {"cell", "mobile", "phone"},
	"CPG %":                             {"cpg_percent", "cpg_pct", "cpg_percentage"},
	"Comments":                          {"comment", "general_comments", "remarks"},
	"Notes":                             {"notes", "note", "remarks"},
	"Date":                              {"date_val", "date"},
	"In Place":                          {"inplace", "in_place", "done"},
	"HN Roles":                          {"appointment_roles", "roles"},
	"Contract/Ref No":                   {"contract_ref", "ref_no", "reference"},
	"ECSA Project Stage":                {"stage", "ecsa_stage"},
	"Description of Deliverable":        {"deliverable_description", "description"},
	"Design Criteria/Requirements":      {"design_criteria", "design_requirements", "criteria"},
	"Planning & Design Risks":           {"planning_risks", "design_risks"},
	"Project-specific Risks":            {"project_risks", "specific_risks"},
	"Mitigating Measures":               {"mitigation", "mitigating_measure", "measures"},
	"Mitigating Measure":                {"mitigation", "mitigating_measures", "measure"},
	"Record of Action Taken":            {"action_taken", "actions", "record_of_action"},
	"Status/Reference No.":              {"status", "reference_no", "ref_no"},
	"Tender Phase Notes":                {"tender_notes"},
	"Award Value (incl. VAT)":           {"award_value", "contract_value"},
	"Final Value (incl VAT)":            {"final_value"},
	"Where Instruction is recorded":     {"instruction_recorded", "instruction_location"},
	"Construction Manager (Site Agent)": {"site_agent", "construction_manager"},
	"Construction Phase Notes":          {"construction_notes"},
	"General Remarks/Lessons Learned":   {"lessons_learned", "general_remarks", "remarks"},
	"Scope Item":                        {"scope_item", "item", "description"},
	"Owner":                             {"owner", "responsible", "assigned_to"},
	"Due Date":                          {"due_date", "target_date", "due"},
	"Status":                            {"status", "state"},
	"Risk Code":                         {"risk_code", "code", "ref"},
	"Risk":                              {"risk", "risk_description"},
	"Other Evidence":                    {"evidence"},
	"Conforming Activity":               {"conforming", "activity"},
	"Remarks":                           {"remarks", "comments", "notes"},
}
