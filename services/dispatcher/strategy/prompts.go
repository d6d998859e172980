// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package strategy

// faqSystemPrompt frames every knowledge-base answer.
const faqSystemPrompt = "You are a helpful e-commerce customer support assistant."

// faqQuestionTemplate grounds the model on retrieved context. The verbatim
// "I don't know" instruction keeps ungrounded answers detectable downstream.
const faqQuestionTemplate = "Given the question and context below, answer based only on the context.\n" +
	"If the answer is not in the context, say \"I don't know\". Do not make things up.\n\n" +
	"QUESTION: %s\n" +
	"CONTEXT: %s"

// sqlGenerationPrompt asks for a single SELECT wrapped in SQL tags. The
// schema block must match the product table exactly or the model drifts
// into invented columns.
const sqlGenerationPrompt = `You are an expert in understanding the database schema and generating SQL queries for a natural language question asked
pertaining to the data you have. The schema is provided in the schema tags.
<schema>
table: product

fields:
product_link - string (hyperlink to product)
title - string (name of the product)
brand - string (brand of the product)
price - integer (price of the product in Indian Rupees)
discount - float (discount on the product. 10 percent discount is represented as 0.1, 20 percent as 0.2, and such.)
avg_rating - float (average rating of the product. Range 0-5, 5 is the highest.)
total_ratings - integer (total number of ratings for the product)

</schema>
Make sure whenever you try to search for the brand name, the name can be in any case.
So, make sure to use %LIKE% to find the brand in condition. Never use "ILIKE".
Create a single SQL query for the question provided.
The query should have all the fields in SELECT clause (i.e. SELECT *)

Just the SQL query is needed, nothing more. Always provide the SQL in between the <SQL></SQL> tags.`

// comprehensionPrompt turns a scalar or aggregate query result back into
// plain language.
const comprehensionPrompt = `You are an expert in understanding the context of the question and replying based on the data pertaining to the question provided. You will be provided with Question: and Data:. The data will be in the form of an array or a dataframe or dict. Reply based on only the data provided as Data for answering the question asked as Question. Do not write anything like 'Based on the data' or any other technical words. Just a plain simple natural language response.
The Data would always be in context to the question asked. For example if the question is "What is the average rating?" and data is "4.3", then answer should be "The average rating for the product is 4.3". So make sure the response is curated with the question and data. Make sure to note the column names to have some context, if needed, for your response.`

// OutOfScopeMessage is the canned reply for queries the assistant cannot
// ground in either backend or the conversation history.
const OutOfScopeMessage = "I'm sorry, I don't have information about that. \n\n" +
	"I can help you with:\n" +
	"- 👟 **Finding shoes** — search by brand, price, rating, or discount\n" +
	"- ❓ **Support questions** — returns, shipping, payments\n" +
	"- 💬 **Follow-up questions** about shoes I've already shown you"

// fallbackSystemPrompt restricts the fallback strategy to conversation
// history only. Clarifying questions are forbidden so an ungroundable query
// terminates in one turn.
const fallbackSystemPrompt = "You are ShopAssist, an e-commerce store assistant. " +
	"Your ONLY job is to answer follow-up questions about products or topics " +
	"already discussed in the conversation history below. " +
	"Do NOT use any outside knowledge. " +
	"Do NOT ask the user for more information or more context. " +
	"If the question cannot be answered from the conversation history, " +
	"reply with exactly: \"" + OutOfScopeMessage + "\""

// NoDataMessage is the answer surfaced when the catalog has nothing for a
// structured query. Its prefix is one of the recognized no-data markers.
const NoDataMessage = "Sorry, we do not have the data to answer this question. Please ask another question."

// InvalidQueryMessage is the answer surfaced when the generated statement
// fails validation and is refused execution. Like NoDataMessage its prefix
// is a recognized no-data marker, so a rejection escalates the same way an
// empty result does.
const InvalidQueryMessage = "Invalid query generated. Please try asking the question in another way."
